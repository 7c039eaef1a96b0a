package account

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository defines account projection persistence.
//
// IncrementBalance must be an atomic numeric delta (balance = balance + n)
// so that racing top-ups and refunds on the same account never lose updates.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByUserID(ctx context.Context, userID string) (*Account, error)
	List(ctx context.Context, limit, offset int) ([]*Account, error)
	IncrementBalance(ctx context.Context, userID string, delta int64) error
	SetSessionExpiry(ctx context.Context, userID string, expiresAt *time.Time) error
	SetStatus(ctx context.Context, userID string, status Status) error
	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	UserID string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.UserID
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.UserID == "" {
		return true
	}
	return e.UserID == t.UserID
}

// ErrAccountBlacklisted indicates the account is blocked from new credits
type ErrAccountBlacklisted struct {
	UserID string
}

func (e ErrAccountBlacklisted) Error() string {
	return "account is blacklisted: " + e.UserID
}

// Is implements the errors.Is interface for ErrAccountBlacklisted
func (e ErrAccountBlacklisted) Is(target error) bool {
	t, ok := target.(ErrAccountBlacklisted)
	if !ok {
		return false
	}
	if t.UserID == "" {
		return true
	}
	return e.UserID == t.UserID
}

// ErrDuplicateAccount indicates user ID uniqueness violation
type ErrDuplicateAccount struct {
	UserID string
}

func (e ErrDuplicateAccount) Error() string {
	return "account already exists: " + e.UserID
}

// Is implements the errors.Is interface for ErrDuplicateAccount
func (e ErrDuplicateAccount) Is(target error) bool {
	t, ok := target.(ErrDuplicateAccount)
	if !ok {
		return false
	}
	if t.UserID == "" {
		return true
	}
	return e.UserID == t.UserID
}
