package topup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines top-up request persistence.
//
// MarkProcessed is a conditional update guarded on status = PENDING; it is
// the single place where a request leaves the pending state, so a second
// processing attempt fails ErrAlreadyProcessed no matter how the calls race.
type Repository interface {
	Create(ctx context.Context, request *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Request, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, status Status, adminID string, processedAt time.Time) error
	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates missing top-up request
type ErrRequestNotFound struct {
	ID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "top-up request not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrRequestNotFound
func (e ErrRequestNotFound) Is(target error) bool {
	t, ok := target.(ErrRequestNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrAlreadyProcessed indicates the request already reached a terminal state
type ErrAlreadyProcessed struct {
	ID uuid.UUID
}

func (e ErrAlreadyProcessed) Error() string {
	return "top-up request already processed: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrAlreadyProcessed
func (e ErrAlreadyProcessed) Is(target error) bool {
	t, ok := target.(ErrAlreadyProcessed)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
