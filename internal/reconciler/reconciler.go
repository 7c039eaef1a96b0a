// Package reconciler implements the out-of-band drift job. It never trusts
// the cached balance projection alone: every pass recomputes each account's
// balance from the ledger and flags disagreement, and it rolls forward
// refund sequences that crashed after their balance credit committed.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/netvend-ledger/internal/config"
	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/refund"
	"github.com/netvend-ledger/internal/platform/messaging/producers"
	"github.com/netvend-ledger/internal/platform/metrics"
	"github.com/netvend-ledger/internal/service"
)

// Reconciler periodically audits the account projection against the ledger
type Reconciler struct {
	accountRepo  account.Repository
	ledgerRepo   ledger.Repository
	markerRepo   refund.Repository
	publisher    producers.EventPublisher
	pool         *ants.Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	markerMaxAge time.Duration
	now          func() time.Time
}

// NewReconciler creates a reconciler with its own worker pool
func NewReconciler(
	cfg *config.ReconcilerConfig,
	logger *slog.Logger,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	markerRepo refund.Repository,
	publisher producers.EventPublisher,
) (*Reconciler, error) {
	pool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler worker pool: %w", err)
	}

	return &Reconciler{
		accountRepo:  accountRepo,
		ledgerRepo:   ledgerRepo,
		markerRepo:   markerRepo,
		publisher:    publisher,
		pool:         pool,
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
		markerMaxAge: cfg.MarkerMaxAge,
		now:          time.Now,
	}, nil
}

// Start runs reconciliation passes until the context is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		"poll_interval", r.pollInterval.String(),
		"batch_size", r.batchSize,
		"marker_max_age", r.markerMaxAge.String(),
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := r.resumeStalledRefunds(ctx); err != nil {
				r.logger.Error("Error while resuming stalled refunds", "error", err)
			}
			if err := r.checkBalanceDrift(ctx); err != nil {
				r.logger.Error("Error during balance drift pass", "error", err)
			}
		}
	}
}

// Shutdown releases the worker pool
func (r *Reconciler) Shutdown() {
	r.logger.Info("Shutting down reconciler worker pool", "running_workers", r.pool.Running())
	r.pool.Release()
}

// resumeStalledRefunds rolls forward refund sequences whose marker outlived
// the maximum age. The credit already committed with the marker, so resuming
// means redoing the idempotent tail: refund entry, expiry recompute,
// refunded flag, marker delete.
func (r *Reconciler) resumeStalledRefunds(ctx context.Context) error {
	markers, err := r.markerRepo.ListOlderThan(ctx, r.markerMaxAge, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list stalled refund markers: %w", err)
	}

	for _, marker := range markers {
		resumed, err := r.resumeRefund(ctx, marker)
		if err != nil {
			r.logger.Error("Failed to resume stalled refund",
				"entry_id", marker.EntryID,
				"started_at", marker.StartedAt,
				"error", err)
			continue
		}
		if !resumed {
			continue
		}
		metrics.StalledRefunds.Inc()
		r.logger.Info("Stalled refund rolled forward",
			"entry_id", marker.EntryID,
			"refund_entry_id", marker.RefundEntryID,
			"user_id", marker.UserID,
		)
	}

	return nil
}

// resumeRefund reports whether the marker's refund was rolled forward. A
// marker whose ledger entry no longer exists is unrecoverable: it is dropped
// so it stops failing every pass, and the drift pass flags the unbacked
// credit.
func (r *Reconciler) resumeRefund(ctx context.Context, marker *refund.Marker) (bool, error) {
	entry, err := r.ledgerRepo.GetByID(ctx, marker.EntryID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			r.logger.Error("Refund marker references a missing ledger entry, dropping it",
				"entry_id", marker.EntryID,
				"user_id", marker.UserID,
				"amount", marker.Amount,
			)
			if deleteErr := r.markerRepo.Delete(ctx, marker.EntryID); deleteErr != nil {
				return false, deleteErr
			}
			return false, nil
		}
		return false, err
	}

	now := r.now()
	if marker.RefundEntryID != "" {
		refundEntry := &ledger.Entry{
			ID:                    marker.RefundEntryID,
			UserID:                entry.UserID,
			Amount:                entry.Amount,
			Type:                  ledger.EntryTypeRefund,
			MinutesPurchased:      -entry.MinutesPurchased,
			PaymentMethod:         entry.PaymentMethod,
			RefundedTransactionID: entry.ID,
			Description:           "refund of " + entry.ID,
			CreatedAt:             now,
		}
		if err := r.ledgerRepo.Create(ctx, refundEntry); err != nil && !errors.Is(err, ledger.ErrDuplicateEntry{}) {
			return false, err
		}
	}

	totalMinutes, err := r.ledgerRepo.SumMinutesByUser(ctx, entry.UserID)
	if err != nil {
		return false, err
	}
	expiry := service.DeriveSessionExpiry(now, totalMinutes)
	if err := r.accountRepo.SetSessionExpiry(ctx, entry.UserID, expiry); err != nil {
		return false, err
	}

	err = r.ledgerRepo.MarkRefunded(ctx, entry.ID, marker.RefundEntryID)
	if err != nil && !errors.Is(err, ledger.ErrAlreadyRefunded{}) {
		return false, err
	}

	if err := r.markerRepo.Delete(ctx, marker.EntryID); err != nil {
		return false, err
	}

	event := producers.LedgerEvent{
		Type:      producers.EventRefundCompleted,
		EntryID:   entry.ID,
		UserID:    entry.UserID,
		Amount:    marker.Amount,
		Timestamp: now,
	}
	if err := r.publisher.Publish(ctx, entry.ID, event); err != nil {
		r.logger.Warn("Failed to publish refund event", "entry_id", entry.ID, "error", err)
	}

	return true, nil
}

// checkBalanceDrift walks every account page by page and recomputes each
// balance from the ledger through the worker pool. Mismatches are flagged,
// never corrected; a refund in flight can show transient drift until its
// marker resolves.
func (r *Reconciler) checkBalanceDrift(ctx context.Context) error {
	offset := 0
	for {
		accounts, err := r.accountRepo.List(ctx, r.batchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil
		}

		var wg sync.WaitGroup
		for _, acc := range accounts {
			acc := acc
			wg.Add(1)
			if err := r.pool.Submit(func() {
				defer wg.Done()
				r.checkAccount(ctx, acc)
			}); err != nil {
				wg.Done()
				r.logger.Error("Failed to submit account to worker pool",
					"user_id", acc.UserID,
					"error", err)
			}
		}
		wg.Wait()

		if len(accounts) < r.batchSize {
			return nil
		}
		offset += r.batchSize
	}
}

func (r *Reconciler) checkAccount(ctx context.Context, acc *account.Account) {
	ledgerBalance, err := r.ledgerRepo.SumAmountByUser(ctx, acc.UserID)
	if err != nil {
		r.logger.Error("Failed to recompute balance from ledger",
			"user_id", acc.UserID,
			"error", err)
		return
	}

	if ledgerBalance == acc.Balance {
		return
	}

	metrics.BalanceDrift.Inc()
	r.logger.Warn("Balance drift detected",
		"user_id", acc.UserID,
		"cached_balance", acc.Balance,
		"ledger_balance", ledgerBalance,
		"drift", acc.Balance-ledgerBalance,
	)

	event := producers.LedgerEvent{
		Type:      producers.EventBalanceDrift,
		UserID:    acc.UserID,
		Amount:    acc.Balance - ledgerBalance,
		Timestamp: r.now(),
	}
	if err := r.publisher.Publish(ctx, acc.UserID, event); err != nil {
		r.logger.Warn("Failed to publish drift event", "user_id", acc.UserID, "error", err)
	}
}
