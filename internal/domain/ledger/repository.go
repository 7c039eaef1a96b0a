package ledger

import (
	"context"
	"time"
)

// Filter narrows ledger queries. Nil fields are ignored.
type Filter struct {
	Type     *EntryType
	Refunded *bool
	From     *time.Time
	To       *time.Time
}

// Repository manages ledger entry persistence.
//
// Create must be one atomic conditional insert (insert-if-absent): two
// concurrent creates with the same ID must never both succeed, so
// implementations may not check-then-write. MarkRefunded is the only other
// mutation and must likewise be a single conditional update.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetByUserID(ctx context.Context, userID string, filter Filter, limit, offset int) ([]*Entry, error)
	CountByUserID(ctx context.Context, userID string, filter Filter) (int64, error)
	MarkRefunded(ctx context.Context, id, refundEntryID string) error
	SumMinutesByUser(ctx context.Context, userID string) (int64, error)
	SumAmountByUser(ctx context.Context, userID string) (int64, error)
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	ID string
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.ID
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target ID matches any ErrEntryNotFound
	if t.ID == "" {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateEntry indicates entry ID uniqueness violation; an existing
// entry is never overwritten
type ErrDuplicateEntry struct {
	ID string
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.ID
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.ID == "" {
		return true
	}
	return e.ID == t.ID
}

// ErrAlreadyRefunded indicates the entry's single refunded transition has
// already happened
type ErrAlreadyRefunded struct {
	ID string
}

func (e ErrAlreadyRefunded) Error() string {
	return "ledger entry already refunded: " + e.ID
}

// Is implements the errors.Is interface for ErrAlreadyRefunded
func (e ErrAlreadyRefunded) Is(target error) bool {
	t, ok := target.(ErrAlreadyRefunded)
	if !ok {
		return false
	}
	if t.ID == "" {
		return true
	}
	return e.ID == t.ID
}

// ErrRefundEntry indicates an attempt to refund a refund
type ErrRefundEntry struct {
	ID string
}

func (e ErrRefundEntry) Error() string {
	return "refund entries are not refundable: " + e.ID
}

// Is implements the errors.Is interface for ErrRefundEntry
func (e ErrRefundEntry) Is(target error) bool {
	t, ok := target.(ErrRefundEntry)
	if !ok {
		return false
	}
	if t.ID == "" {
		return true
	}
	return e.ID == t.ID
}
