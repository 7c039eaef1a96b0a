package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/shared"
	"github.com/netvend-ledger/internal/domain/topup"
)

// TxRunner runs a function inside one Postgres transaction.
// *persistence.PostgresDB satisfies it.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// IDAllocator produces collision-free ledger entry ids.
// *refid.Allocator satisfies it.
type IDAllocator interface {
	SystemID(ctx context.Context) (string, error)
	RefundID(ctx context.Context, originalID string) (string, error)
	Reference(ctx context.Context, method shared.PaymentMethod, reference string) (string, error)
}

// AccountCache fronts the account projection read path.
// *redis.AccountCache satisfies it.
type AccountCache interface {
	Get(ctx context.Context, userID string) (*account.Account, error)
	Set(ctx context.Context, acc *account.Account) error
	Invalidate(ctx context.Context, userID string) error
}

// AccountService defines the interface for account projection reads and
// identity resolution
type AccountService interface {
	// ResolveTag maps an RFID tag string to its account
	// Returns ErrAccountNotFound if no account carries the tag
	ResolveTag(ctx context.Context, tag string) (*account.Account, error)

	// RegisterAccount creates a fresh active account for a tag
	RegisterAccount(ctx context.Context, userID string) (*account.Account, error)
}

// ManualTopUpParams carries an admin-initiated direct credit
type ManualTopUpParams struct {
	UserID        string
	Amount        int64
	Method        shared.PaymentMethod
	Reference     string // Empty selects a system-generated id
	Note          string
	CorrelationID string
}

// TopUpService defines the interface for the top-up request workflow and
// the manual top-up recorder
type TopUpService interface {
	// SubmitRequest records a user-submitted top-up awaiting approval
	SubmitRequest(ctx context.Context, userID string, amount int64, method shared.PaymentMethod) (*topup.Request, error)

	// ListRequests retrieves a page of requests in the given state
	ListRequests(ctx context.Context, status topup.Status, page, perPage int) ([]*topup.Request, error)

	// Approve creates a TOPUP ledger entry for the request's amount,
	// credits the balance and stamps the request, as one logical unit
	// Returns ErrAlreadyProcessed when the request left PENDING before
	Approve(ctx context.Context, requestID uuid.UUID, adminID string) (*topup.Request, error)

	// Reject stamps the request REJECTED; no ledger or balance effect
	Reject(ctx context.Context, requestID uuid.UUID, adminID string) (*topup.Request, error)

	// CreateManualTopUp records an admin-initiated direct credit with no
	// approval step
	// Returns ErrDuplicateReference when the supplied reference was used before
	CreateManualTopUp(ctx context.Context, params ManualTopUpParams) (*ledger.Entry, error)
}

// RefundResult reports a completed refund
type RefundResult struct {
	CreditedAmount     int64      `json:"credited_amount"`
	RefundEntryID      string     `json:"refund_entry_id,omitempty"` // Empty when no time was purchased
	NewSessionExpiryAt *time.Time `json:"new_session_expiry_at,omitempty"`
}

// RefundService defines the interface for the refund reconciliation engine
type RefundService interface {
	// Refund reverses an entry's money and time effect
	// Returns ErrEntryNotFound / ErrRefundEntry / ErrAlreadyRefunded when
	// the entry is missing, a refund itself, or already reversed
	Refund(ctx context.Context, entryID string) (*RefundResult, error)
}

// LedgerService defines the read-only audit surface over the ledger
type LedgerService interface {
	// GetEntry retrieves an entry by id; returns nil when not found
	GetEntry(ctx context.Context, id string) (*ledger.Entry, error)

	// ListEntries retrieves a filtered page of a user's entries plus the
	// total count under the same filter
	ListEntries(ctx context.Context, userID string, filter ledger.Filter, page, perPage int) ([]*ledger.Entry, int64, error)
}

// DeriveSessionExpiry turns a total of purchased minutes into the session
// expiry instant: now + total, or nil when no effective time remains.
func DeriveSessionExpiry(now time.Time, totalMinutes int64) *time.Time {
	if totalMinutes <= 0 {
		return nil
	}
	expiry := now.Add(time.Duration(totalMinutes) * time.Minute)
	return &expiry
}
