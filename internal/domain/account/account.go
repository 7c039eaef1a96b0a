package account

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyUserID   = errors.New("user id cannot be empty")
)

// Status defines account lifecycle states
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusBlacklisted Status = "BLACKLISTED"
)

// Account is the per-user balance projection. UserID is the RFID tag string
// presented at the vending terminal. Balance is a cached aggregate of the
// user's effective ledger amounts; it is only ever changed through atomic
// increments paired with a ledger write, never set directly.
type Account struct {
	UserID          string     `json:"user_id"`
	Balance         int64      `json:"balance"` // Stored in cents/minor units
	SessionExpiryAt *time.Time `json:"session_expiry_at,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewAccount creates an active account with a zero balance
func NewAccount(userID string) (*Account, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	now := time.Now()
	return &Account{
		UserID:    userID,
		Balance:   0,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Blacklisted reports whether the account is blocked from credits
func (a *Account) Blacklisted() bool {
	return a.Status == StatusBlacklisted
}
