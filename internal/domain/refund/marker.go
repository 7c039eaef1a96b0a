package refund

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Marker is a persisted refund-in-progress record. It is inserted in the
// same database transaction as the balance credit, so its presence means the
// money side of a refund has been applied. A marker that outlives its refund
// marks a crash mid-sequence; the reconciler rolls such refunds forward.
type Marker struct {
	EntryID       string    `json:"entry_id"`
	RefundEntryID string    `json:"refund_entry_id,omitempty"` // Empty for pure cash refunds
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	StartedAt     time.Time `json:"started_at"`
}

// Repository defines refund marker persistence. Create is guarded by the
// entry ID primary key: a second refund of the same entry cannot insert a
// second marker while the first is in flight.
type Repository interface {
	Create(ctx context.Context, marker *Marker) error
	Delete(ctx context.Context, entryID string) error
	ListOlderThan(ctx context.Context, age time.Duration, limit int) ([]*Marker, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMarkerExists indicates a refund of the entry is already in flight
type ErrMarkerExists struct {
	EntryID string
}

func (e ErrMarkerExists) Error() string {
	return "refund already in progress for entry: " + e.EntryID
}

// Is implements the errors.Is interface for ErrMarkerExists
func (e ErrMarkerExists) Is(target error) bool {
	t, ok := target.(ErrMarkerExists)
	if !ok {
		return false
	}
	if t.EntryID == "" {
		return true
	}
	return e.EntryID == t.EntryID
}
