package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/refund"
)

type refundServiceMocks struct {
	ledgerRepo  *MockLedgerRepository
	accountRepo *MockAccountRepository
	markerRepo  *MockMarkerRepository
	allocator   *MockAllocator
	cache       *MockAccountCache
	publisher   *MockEventPublisher
}

func newRefundService(t *testing.T, now time.Time) (*RefundServiceImpl, *refundServiceMocks) {
	t.Helper()
	m := &refundServiceMocks{
		ledgerRepo:  &MockLedgerRepository{},
		accountRepo: &MockAccountRepository{},
		markerRepo:  &MockMarkerRepository{},
		allocator:   &MockAllocator{},
		cache:       &MockAccountCache{},
		publisher:   &MockEventPublisher{},
	}

	svc := NewRefundService(newTestLogger(), &fakeTxRunner{}, m.ledgerRepo, m.accountRepo, m.markerRepo, m.allocator, m.cache, m.publisher).(*RefundServiceImpl)
	svc.now = func() time.Time { return now }
	return svc, m
}

func purchaseEntry() *ledger.Entry {
	return &ledger.Entry{
		ID:               "TXN-482910573",
		UserID:           "04A2B9C1",
		Amount:           100,
		Type:             ledger.EntryTypePurchase,
		MinutesPurchased: 30,
		CreatedAt:        time.Now().Add(-time.Hour),
	}
}

func TestRefundService_Refund(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	t.Run("refund reverses money and time", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		m.accountRepo.On("GetByUserID", mock.Anything, entry.UserID).Return(activeAccount(entry.UserID), nil)
		m.allocator.On("RefundID", mock.Anything, entry.ID).Return("RFND-482910", nil)
		m.markerRepo.On("Create", mock.Anything, mock.MatchedBy(func(mk *refund.Marker) bool {
			return mk.EntryID == entry.ID && mk.RefundEntryID == "RFND-482910" &&
				mk.UserID == entry.UserID && mk.Amount == 100
		})).Return(nil)
		m.accountRepo.On("IncrementBalance", mock.Anything, entry.UserID, int64(100)).Return(nil)
		m.ledgerRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.ID == "RFND-482910" && e.Type == ledger.EntryTypeRefund &&
				e.MinutesPurchased == -30 && e.RefundedTransactionID == entry.ID &&
				e.Amount == 100
		})).Return(nil)
		m.ledgerRepo.On("SumMinutesByUser", mock.Anything, entry.UserID).Return(int64(45), nil)
		wantExpiry := now.Add(45 * time.Minute)
		m.accountRepo.On("SetSessionExpiry", mock.Anything, entry.UserID, mock.MatchedBy(func(at *time.Time) bool {
			return at != nil && at.Equal(wantExpiry)
		})).Return(nil)
		m.ledgerRepo.On("MarkRefunded", mock.Anything, entry.ID, "RFND-482910").Return(nil)
		m.markerRepo.On("Delete", mock.Anything, entry.ID).Return(nil)
		m.cache.On("Invalidate", mock.Anything, entry.UserID).Return(nil)
		m.publisher.On("Publish", mock.Anything, entry.ID, mock.Anything).Return(nil)

		result, err := svc.Refund(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), result.CreditedAmount)
		assert.Equal(t, "RFND-482910", result.RefundEntryID)
		require.NotNil(t, result.NewSessionExpiryAt)
		assert.True(t, result.NewSessionExpiryAt.Equal(wantExpiry))

		m.ledgerRepo.AssertExpectations(t)
		m.accountRepo.AssertExpectations(t)
		m.markerRepo.AssertExpectations(t)
	})

	t.Run("pure cash entry refunds money only", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()
		entry.Type = ledger.EntryTypeManualTopUp
		entry.MinutesPurchased = 0

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		m.accountRepo.On("GetByUserID", mock.Anything, entry.UserID).Return(activeAccount(entry.UserID), nil)
		m.markerRepo.On("Create", mock.Anything, mock.MatchedBy(func(mk *refund.Marker) bool {
			return mk.RefundEntryID == ""
		})).Return(nil)
		m.accountRepo.On("IncrementBalance", mock.Anything, entry.UserID, int64(100)).Return(nil)
		m.ledgerRepo.On("SumMinutesByUser", mock.Anything, entry.UserID).Return(int64(0), nil)
		m.accountRepo.On("SetSessionExpiry", mock.Anything, entry.UserID, (*time.Time)(nil)).Return(nil)
		m.ledgerRepo.On("MarkRefunded", mock.Anything, entry.ID, "").Return(nil)
		m.markerRepo.On("Delete", mock.Anything, entry.ID).Return(nil)
		m.cache.On("Invalidate", mock.Anything, entry.UserID).Return(nil)
		m.publisher.On("Publish", mock.Anything, entry.ID, mock.Anything).Return(nil)

		result, err := svc.Refund(ctx, entry.ID)
		require.NoError(t, err)
		assert.Empty(t, result.RefundEntryID)
		assert.Nil(t, result.NewSessionExpiryAt)

		m.allocator.AssertNotCalled(t, "RefundID")
		m.ledgerRepo.AssertNotCalled(t, "Create")
	})

	t.Run("already refunded entry is rejected", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()
		entry.Refunded = true
		entry.RefundedTransactionID = "RFND-482910"

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)

		_, err := svc.Refund(ctx, entry.ID)
		assert.ErrorIs(t, err, ledger.ErrAlreadyRefunded{ID: entry.ID})
		m.accountRepo.AssertNotCalled(t, "IncrementBalance")
	})

	t.Run("refund entries cannot be refunded", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()
		entry.ID = "RFND-482910"
		entry.Type = ledger.EntryTypeRefund
		entry.MinutesPurchased = -30

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)

		_, err := svc.Refund(ctx, entry.ID)
		assert.ErrorIs(t, err, ledger.ErrRefundEntry{ID: entry.ID})
		m.accountRepo.AssertNotCalled(t, "IncrementBalance")
	})

	t.Run("unknown entry", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		m.ledgerRepo.On("GetByID", mock.Anything, "TXN-000000000").Return(nil, ledger.ErrEntryNotFound{ID: "TXN-000000000"})

		_, err := svc.Refund(ctx, "TXN-000000000")
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound{})
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()
		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		m.accountRepo.On("GetByUserID", mock.Anything, entry.UserID).Return(nil, account.ErrAccountNotFound{UserID: entry.UserID})

		_, err := svc.Refund(ctx, entry.ID)
		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
		m.markerRepo.AssertNotCalled(t, "Create")
	})

	t.Run("concurrent refund loses the marker race", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		m.accountRepo.On("GetByUserID", mock.Anything, entry.UserID).Return(activeAccount(entry.UserID), nil)
		m.allocator.On("RefundID", mock.Anything, entry.ID).Return("RFND-482910", nil)
		m.markerRepo.On("Create", mock.Anything, mock.Anything).Return(refund.ErrMarkerExists{EntryID: entry.ID})

		_, err := svc.Refund(ctx, entry.ID)
		assert.ErrorIs(t, err, ledger.ErrAlreadyRefunded{ID: entry.ID})
		m.accountRepo.AssertNotCalled(t, "IncrementBalance")
		m.ledgerRepo.AssertNotCalled(t, "Create")
	})

	t.Run("duplicate refund entry from a resumed attempt is tolerated", func(t *testing.T) {
		svc, m := newRefundService(t, now)
		entry := purchaseEntry()

		m.ledgerRepo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
		m.accountRepo.On("GetByUserID", mock.Anything, entry.UserID).Return(activeAccount(entry.UserID), nil)
		m.allocator.On("RefundID", mock.Anything, entry.ID).Return("RFND-482910", nil)
		m.markerRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		m.accountRepo.On("IncrementBalance", mock.Anything, entry.UserID, int64(100)).Return(nil)
		m.ledgerRepo.On("Create", mock.Anything, mock.Anything).Return(ledger.ErrDuplicateEntry{ID: "RFND-482910"})
		m.ledgerRepo.On("SumMinutesByUser", mock.Anything, entry.UserID).Return(int64(0), nil)
		m.accountRepo.On("SetSessionExpiry", mock.Anything, entry.UserID, (*time.Time)(nil)).Return(nil)
		m.ledgerRepo.On("MarkRefunded", mock.Anything, entry.ID, "RFND-482910").Return(nil)
		m.markerRepo.On("Delete", mock.Anything, entry.ID).Return(nil)
		m.cache.On("Invalidate", mock.Anything, entry.UserID).Return(nil)
		m.publisher.On("Publish", mock.Anything, entry.ID, mock.Anything).Return(nil)

		result, err := svc.Refund(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "RFND-482910", result.RefundEntryID)
	})
}

func TestDeriveSessionExpiry(t *testing.T) {
	now := time.Now()

	t.Run("positive minutes extend from now", func(t *testing.T) {
		expiry := DeriveSessionExpiry(now, 90)
		require.NotNil(t, expiry)
		assert.True(t, expiry.Equal(now.Add(90*time.Minute)))
	})

	t.Run("zero minutes clear the expiry", func(t *testing.T) {
		assert.Nil(t, DeriveSessionExpiry(now, 0))
	})

	t.Run("negative minutes clear the expiry", func(t *testing.T) {
		assert.Nil(t, DeriveSessionExpiry(now, -30))
	})
}
