package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netvend-ledger/internal/domain/account"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}

	now := time.Now()
	acc := &account.Account{
		UserID:    "04A2B9C1",
		Balance:   0,
		Status:    account.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO accounts \(user_id, balance, session_expiry_at, status, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(acc.UserID, acc.Balance, acc.SessionExpiryAt, acc.Status, acc.CreatedAt, acc.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, acc)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate user id", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(acc.UserID, acc.Balance, acc.SessionExpiryAt, acc.Status, acc.CreatedAt, acc.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err := repo.Create(ctx, acc)
		assert.ErrorIs(t, err, account.ErrDuplicateAccount{UserID: acc.UserID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(acc.UserID, acc.Balance, acc.SessionExpiryAt, acc.Status, acc.CreatedAt, acc.UpdatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, acc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create account")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByUserID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}
	userID := "04A2B9C1"
	now := time.Now()
	expiry := now.Add(30 * time.Minute)

	expectedAccount := &account.Account{
		UserID:          userID,
		Balance:         2500,
		SessionExpiryAt: &expiry,
		Status:          account.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query := `
		SELECT user_id, balance, session_expiry_at, status, created_at, updated_at
		FROM accounts
		WHERE user_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"user_id", "balance", "session_expiry_at", "status", "created_at", "updated_at"}).
			AddRow(expectedAccount.UserID, expectedAccount.Balance, expectedAccount.SessionExpiryAt, expectedAccount.Status, expectedAccount.CreatedAt, expectedAccount.UpdatedAt)
		mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

		acc, err := repo.GetByUserID(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, expectedAccount, acc)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(pgx.ErrNoRows)

		acc, err := repo.GetByUserID(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, acc)
		var notFoundErr account.ErrAccountNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, userID, notFoundErr.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(dbErr)

		acc, err := repo.GetByUserID(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, acc)
		assert.Contains(t, err.Error(), "failed to get account")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_IncrementBalance(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}
	userID := "04A2B9C1"
	delta := int64(500)

	query := `
		UPDATE accounts
		SET balance = balance \+ \$1, updated_at = NOW\(\)
		WHERE user_id = \$2
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.IncrementBalance(ctx, userID, delta)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative delta", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(int64(-500), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.IncrementBalance(ctx, userID, -500)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account missing", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.IncrementBalance(ctx, userID, delta)
		assert.ErrorIs(t, err, account.ErrAccountNotFound{UserID: userID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("increment db error")
		mock.ExpectExec(query).
			WithArgs(delta, userID).
			WillReturnError(dbErr)

		err := repo.IncrementBalance(ctx, userID, delta)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to increment account balance")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_SetSessionExpiry(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}
	userID := "04A2B9C1"

	query := `
		UPDATE accounts
		SET session_expiry_at = \$1, updated_at = NOW\(\)
		WHERE user_id = \$2
	`

	t.Run("set expiry", func(t *testing.T) {
		expiry := time.Now().Add(45 * time.Minute)
		mock.ExpectExec(query).
			WithArgs(&expiry, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.SetSessionExpiry(ctx, userID, &expiry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clear expiry", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs((*time.Time)(nil), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.SetSessionExpiry(ctx, userID, nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account missing", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs((*time.Time)(nil), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetSessionExpiry(ctx, userID, nil)
		assert.ErrorIs(t, err, account.ErrAccountNotFound{UserID: userID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_List(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}
	now := time.Now()

	query := `
		SELECT user_id, balance, session_expiry_at, status, created_at, updated_at
		FROM accounts
		ORDER BY user_id
		LIMIT \$1 OFFSET \$2
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"user_id", "balance", "session_expiry_at", "status", "created_at", "updated_at"}).
			AddRow("04A2B9C1", int64(1000), (*time.Time)(nil), account.StatusActive, now, now).
			AddRow("04F7D312", int64(250), (*time.Time)(nil), account.StatusBlacklisted, now, now)
		mock.ExpectQuery(query).WithArgs(100, 0).WillReturnRows(rows)

		accounts, err := repo.List(ctx, 100, 0)
		assert.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "04A2B9C1", accounts[0].UserID)
		assert.Equal(t, account.StatusBlacklisted, accounts[1].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("list db error")
		mock.ExpectQuery(query).WithArgs(100, 0).WillReturnError(dbErr)

		accounts, err := repo.List(ctx, 100, 0)
		assert.Error(t, err)
		assert.Nil(t, accounts)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_WithTx(t *testing.T) {
	logger := newTestLogger()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	originalRepo := &AccountRepository{querier: mockPool, logger: logger}

	mockPool.ExpectBegin()
	pgxTx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)

	txRepo := originalRepo.WithTx(pgxTx)

	assert.NotNil(t, txRepo)
	assert.Equal(t, originalRepo.logger, txRepo.(*AccountRepository).logger)
	assert.Equal(t, pgxTx, txRepo.(*AccountRepository).querier, "Querier in new repo should be the transaction")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}
