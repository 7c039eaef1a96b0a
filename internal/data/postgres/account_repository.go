// Package postgres provides PostgreSQL implementations of the mutable
// projections: account balances, top-up requests and refund-in-progress
// markers. The immutable ledger itself lives in MongoDB.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/platform/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so balance and marker
// writes can share one atomic unit
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account projection
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (user_id, balance, session_expiry_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.UserID,
		acc.Balance,
		acc.SessionExpiryAt,
		acc.Status,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return account.ErrDuplicateAccount{UserID: acc.UserID}
		}
		r.logger.Error("Failed to create account", "user_id", acc.UserID, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByUserID retrieves an account by the RFID tag string that keys it
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*account.Account, error) {
	query := `
		SELECT user_id, balance, session_expiry_at, status, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.SessionExpiryAt,
		&acc.Status,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get account", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// List retrieves a stable page of accounts, ordered by user id. Used by the
// reconciler to walk the full account set.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*account.Account, error) {
	query := `
		SELECT user_id, balance, session_expiry_at, status, created_at, updated_at
		FROM accounts
		ORDER BY user_id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list accounts", "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		if err := rows.Scan(
			&acc.UserID,
			&acc.Balance,
			&acc.SessionExpiryAt,
			&acc.Status,
			&acc.CreatedAt,
			&acc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// IncrementBalance applies an atomic numeric delta to the cached balance.
// The increment happens inside the database, so racing top-ups and refunds
// on one account never lose updates.
func (r *AccountRepository) IncrementBalance(ctx context.Context, userID string, delta int64) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := r.querier.Exec(ctx, query, delta, userID)
	if err != nil {
		r.logger.Error("Failed to increment account balance", "user_id", userID, "error", err)
		return fmt.Errorf("failed to increment account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{UserID: userID}
	}

	return nil
}

// SetSessionExpiry overwrites the derived session expiry instant. A nil
// expiry clears it (purchased time exhausted).
func (r *AccountRepository) SetSessionExpiry(ctx context.Context, userID string, expiresAt *time.Time) error {
	query := `
		UPDATE accounts
		SET session_expiry_at = $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := r.querier.Exec(ctx, query, expiresAt, userID)
	if err != nil {
		r.logger.Error("Failed to set session expiry", "user_id", userID, "error", err)
		return fmt.Errorf("failed to set session expiry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{UserID: userID}
	}

	return nil
}

// SetStatus updates the account lifecycle status
func (r *AccountRepository) SetStatus(ctx context.Context, userID string, status account.Status) error {
	query := `
		UPDATE accounts
		SET status = $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := r.querier.Exec(ctx, query, status, userID)
	if err != nil {
		r.logger.Error("Failed to set account status", "user_id", userID, "error", err)
		return fmt.Errorf("failed to set account status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{UserID: userID}
	}

	return nil
}
