package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/refund"
	"github.com/netvend-ledger/internal/domain/shared"
	"github.com/netvend-ledger/internal/domain/topup"
)

// fakeTxRunner runs the transactional function directly. The repositories
// under it are mocks, so there is no real transaction to carry.
type fakeTxRunner struct {
	beginErr error
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(nil)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id string) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) GetByUserID(ctx context.Context, userID string, filter ledger.Filter, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, userID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByUserID(ctx context.Context, userID string, filter ledger.Filter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) MarkRefunded(ctx context.Context, id, refundEntryID string) error {
	args := m.Called(ctx, id, refundEntryID)
	return args.Error(0)
}

func (m *MockLedgerRepository) SumMinutesByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SumAmountByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*account.Account, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) IncrementBalance(ctx context.Context, userID string, delta int64) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) SetSessionExpiry(ctx context.Context, userID string, expiresAt *time.Time) error {
	args := m.Called(ctx, userID, expiresAt)
	return args.Error(0)
}

func (m *MockAccountRepository) SetStatus(ctx context.Context, userID string, status account.Status) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockTopUpRepository struct {
	mock.Mock
}

func (m *MockTopUpRepository) Create(ctx context.Context, req *topup.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockTopUpRepository) GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*topup.Request), args.Error(1)
}

func (m *MockTopUpRepository) ListByStatus(ctx context.Context, status topup.Status, limit, offset int) ([]*topup.Request, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*topup.Request), args.Error(1)
}

func (m *MockTopUpRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status topup.Status, adminID string, processedAt time.Time) error {
	args := m.Called(ctx, id, status, adminID, processedAt)
	return args.Error(0)
}

func (m *MockTopUpRepository) WithTx(tx pgx.Tx) topup.Repository {
	return m
}

type MockMarkerRepository struct {
	mock.Mock
}

func (m *MockMarkerRepository) Create(ctx context.Context, marker *refund.Marker) error {
	args := m.Called(ctx, marker)
	return args.Error(0)
}

func (m *MockMarkerRepository) Delete(ctx context.Context, entryID string) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

func (m *MockMarkerRepository) ListOlderThan(ctx context.Context, age time.Duration, limit int) ([]*refund.Marker, error) {
	args := m.Called(ctx, age, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*refund.Marker), args.Error(1)
}

func (m *MockMarkerRepository) WithTx(tx pgx.Tx) refund.Repository {
	return m
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) SystemID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockAllocator) RefundID(ctx context.Context, originalID string) (string, error) {
	args := m.Called(ctx, originalID)
	return args.String(0), args.Error(1)
}

func (m *MockAllocator) Reference(ctx context.Context, method shared.PaymentMethod, reference string) (string, error) {
	args := m.Called(ctx, method, reference)
	return args.String(0), args.Error(1)
}

type MockAccountCache struct {
	mock.Mock
}

func (m *MockAccountCache) Get(ctx context.Context, userID string) (*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountCache) Set(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountCache) Invalidate(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
