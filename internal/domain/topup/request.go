package topup

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/netvend-ledger/internal/domain/shared"
)

var ErrInvalidAmount = errors.New("top-up amount must be positive")

// Status defines request processing states. Approved and Rejected are
// terminal; a request never leaves either.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is a user-submitted top-up awaiting an admin decision. Only an
// approval produces a ledger entry and a balance credit.
type Request struct {
	ID            uuid.UUID            `json:"id"`
	UserID        string               `json:"user_id"`
	Amount        int64                `json:"amount"` // Stored in cents/minor units
	PaymentMethod shared.PaymentMethod `json:"payment_method"`
	Status        Status               `json:"status"`
	RequestedAt   time.Time            `json:"requested_at"`
	ProcessedAt   *time.Time           `json:"processed_at,omitempty"`
	ProcessedBy   string               `json:"processed_by,omitempty"`
}

// NewRequest creates a pending top-up request
func NewRequest(userID string, amount int64, method shared.PaymentMethod) (*Request, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !method.Valid() {
		return nil, shared.ErrUnknownPaymentMethod
	}

	return &Request{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: method,
		Status:        StatusPending,
		RequestedAt:   time.Now(),
	}, nil
}

// Processed reports whether the request has reached a terminal state
func (r *Request) Processed() bool {
	return r.Status != StatusPending
}
