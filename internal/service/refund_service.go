package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/refund"
	"github.com/netvend-ledger/internal/platform/messaging/producers"
	"github.com/netvend-ledger/internal/platform/metrics"
)

// RefundServiceImpl implements the refund reconciliation engine. A refund
// reverses both the money and the purchased time of one ledger entry:
//
//  1. resolve the entry's account
//  2. credit the balance by the entry's full amount
//  3. when time was purchased, write a REFUND entry carrying the negated
//     minutes and a back-reference to the original
//  4. recompute the session expiry from the whole ledger
//  5. flip the original entry's refunded flag
//
// Steps 2 and the refund-in-progress marker commit in one Postgres
// transaction; the marker's primary key is what stops a concurrent second
// refund from crediting twice. Steps 3-5 are idempotent, so a crash after
// the commit leaves a marker the reconciler can roll forward. Already
// applied steps are never rolled back; the failing step's error is
// returned verbatim.
type RefundServiceImpl struct {
	tx          TxRunner
	ledgerRepo  ledger.Repository
	accountRepo account.Repository
	markerRepo  refund.Repository
	allocator   IDAllocator
	cache       AccountCache
	publisher   producers.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewRefundService creates a new refund service
func NewRefundService(
	logger *slog.Logger,
	tx TxRunner,
	ledgerRepo ledger.Repository,
	accountRepo account.Repository,
	markerRepo refund.Repository,
	allocator IDAllocator,
	cache AccountCache,
	publisher producers.EventPublisher,
) RefundService {
	return &RefundServiceImpl{
		tx:          tx,
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		markerRepo:  markerRepo,
		allocator:   allocator,
		cache:       cache,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// Refund reverses the entry's money and time effect
func (s *RefundServiceImpl) Refund(ctx context.Context, entryID string) (*RefundResult, error) {
	result, err := s.refund(ctx, entryID)
	if err != nil {
		metrics.Refunds.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.Refunds.WithLabelValues("success").Inc()
	return result, nil
}

func (s *RefundServiceImpl) refund(ctx context.Context, entryID string) (*RefundResult, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Type == ledger.EntryTypeRefund {
		return nil, ledger.ErrRefundEntry{ID: entryID}
	}
	if entry.Refunded {
		return nil, ledger.ErrAlreadyRefunded{ID: entryID}
	}

	if _, err := s.accountRepo.GetByUserID(ctx, entry.UserID); err != nil {
		return nil, err
	}

	// The refund id is fixed before any state changes so a crashed attempt
	// leaves a marker that names the exact entry to recreate
	var refundEntryID string
	if entry.MinutesPurchased > 0 {
		refundEntryID, err = s.allocator.RefundID(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	marker := &refund.Marker{
		EntryID:       entry.ID,
		RefundEntryID: refundEntryID,
		UserID:        entry.UserID,
		Amount:        entry.Amount,
		StartedAt:     now,
	}

	err = s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.markerRepo.WithTx(tx).Create(ctx, marker); err != nil {
			return err
		}
		return s.accountRepo.WithTx(tx).IncrementBalance(ctx, entry.UserID, entry.Amount)
	})
	if err != nil {
		// A live marker means another refund of this entry holds the credit
		if errors.Is(err, refund.ErrMarkerExists{}) {
			return nil, ledger.ErrAlreadyRefunded{ID: entry.ID}
		}
		return nil, err
	}

	if refundEntryID != "" {
		refundEntry := &ledger.Entry{
			ID:                    refundEntryID,
			UserID:                entry.UserID,
			Amount:                entry.Amount,
			Type:                  ledger.EntryTypeRefund,
			MinutesPurchased:      -entry.MinutesPurchased,
			PaymentMethod:         entry.PaymentMethod,
			RefundedTransactionID: entry.ID,
			Description:           "refund of " + entry.ID,
			CreatedAt:             now,
		}
		if err := s.ledgerRepo.Create(ctx, refundEntry); err != nil && !errors.Is(err, ledger.ErrDuplicateEntry{}) {
			return nil, err
		}
	}

	expiry, err := s.recomputeSessionExpiry(ctx, entry.UserID, now)
	if err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.MarkRefunded(ctx, entry.ID, refundEntryID); err != nil {
		return nil, err
	}

	if err := s.markerRepo.Delete(ctx, entry.ID); err != nil {
		// The reconciler's roll-forward of a leftover marker is idempotent
		s.logger.Warn("Failed to delete refund marker", "entry_id", entry.ID, "error", err)
	}

	if err := s.cache.Invalidate(ctx, entry.UserID); err != nil {
		s.logger.Warn("Failed to invalidate cached account", "user_id", entry.UserID, "error", err)
	}

	event := producers.LedgerEvent{
		Type:      producers.EventRefundCompleted,
		EntryID:   entry.ID,
		UserID:    entry.UserID,
		Amount:    entry.Amount,
		Timestamp: s.now(),
	}
	if err := s.publisher.Publish(ctx, entry.ID, event); err != nil {
		s.logger.Warn("Failed to publish refund event", "entry_id", entry.ID, "error", err)
	}

	s.logger.Info("Refund completed",
		"entry_id", entry.ID,
		"refund_entry_id", refundEntryID,
		"user_id", entry.UserID,
		"credited_amount", entry.Amount,
	)

	return &RefundResult{
		CreditedAmount:     entry.Amount,
		RefundEntryID:      refundEntryID,
		NewSessionExpiryAt: expiry,
	}, nil
}

// recomputeSessionExpiry derives the expiry from the full ledger rather
// than applying a delta, healing any prior drift at O(n) cost per refund
func (s *RefundServiceImpl) recomputeSessionExpiry(ctx context.Context, userID string, now time.Time) (*time.Time, error) {
	totalMinutes, err := s.ledgerRepo.SumMinutesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	expiry := DeriveSessionExpiry(now, totalMinutes)
	if err := s.accountRepo.SetSessionExpiry(ctx, userID, expiry); err != nil {
		return nil, err
	}

	return expiry, nil
}
