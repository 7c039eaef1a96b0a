package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/shared"
	"github.com/netvend-ledger/internal/domain/topup"
	"github.com/netvend-ledger/internal/platform/messaging/producers"
	"github.com/netvend-ledger/internal/platform/metrics"
	"github.com/netvend-ledger/internal/refid"
)

// TopUpServiceImpl implements the TopUpService interface
type TopUpServiceImpl struct {
	tx          TxRunner
	topupRepo   topup.Repository
	accountRepo account.Repository
	ledgerRepo  ledger.Repository
	allocator   IDAllocator
	cache       AccountCache
	publisher   producers.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewTopUpService creates a new top-up service
func NewTopUpService(
	logger *slog.Logger,
	tx TxRunner,
	topupRepo topup.Repository,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	allocator IDAllocator,
	cache AccountCache,
	publisher producers.EventPublisher,
) TopUpService {
	return &TopUpServiceImpl{
		tx:          tx,
		topupRepo:   topupRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		allocator:   allocator,
		cache:       cache,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// SubmitRequest records a user-submitted top-up awaiting an admin decision
func (s *TopUpServiceImpl) SubmitRequest(ctx context.Context, userID string, amount int64, method shared.PaymentMethod) (*topup.Request, error) {
	if _, err := s.accountRepo.GetByUserID(ctx, userID); err != nil {
		return nil, err
	}

	req, err := topup.NewRequest(userID, amount, method)
	if err != nil {
		return nil, err
	}

	if err := s.topupRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Top-up request submitted",
		"request_id", req.ID.String(),
		"user_id", userID,
		"amount", amount,
		"payment_method", string(method),
	)
	return req, nil
}

// ListRequests retrieves a page of requests in the given state
func (s *TopUpServiceImpl) ListRequests(ctx context.Context, status topup.Status, page, perPage int) ([]*topup.Request, error) {
	offset := (page - 1) * perPage
	return s.topupRepo.ListByStatus(ctx, status, perPage, offset)
}

// Approve processes a pending request: stamp it APPROVED, credit the
// balance and write the TOPUP ledger entry, all as one logical unit. The
// stamp is conditional on PENDING, so racing approvals collapse to exactly
// one credit; the losers fail ErrAlreadyProcessed. The ledger write runs
// last inside the transaction, so its failure rolls the stamp and the
// credit back.
func (s *TopUpServiceImpl) Approve(ctx context.Context, requestID uuid.UUID, adminID string) (*topup.Request, error) {
	req, err := s.topupRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Processed() {
		return nil, topup.ErrAlreadyProcessed{ID: requestID}
	}

	entryID, err := s.allocator.SystemID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &ledger.Entry{
		ID:            entryID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Type:          ledger.EntryTypeTopUp,
		PaymentMethod: req.PaymentMethod,
		Description:   fmt.Sprintf("approved top-up request %s", req.ID.String()),
		CreatedAt:     now,
	}

	err = s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.topupRepo.WithTx(tx).MarkProcessed(ctx, req.ID, topup.StatusApproved, adminID, now); err != nil {
			return err
		}
		if err := s.accountRepo.WithTx(tx).IncrementBalance(ctx, req.UserID, req.Amount); err != nil {
			return err
		}
		return s.ledgerRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.afterLedgerWrite(ctx, entry)
	s.logger.Info("Top-up request approved",
		"request_id", req.ID.String(),
		"entry_id", entryID,
		"user_id", req.UserID,
		"amount", req.Amount,
		"admin_id", adminID,
	)

	req.Status = topup.StatusApproved
	req.ProcessedAt = &now
	req.ProcessedBy = adminID
	return req, nil
}

// Reject stamps a pending request REJECTED. No ledger entry, no balance
// effect.
func (s *TopUpServiceImpl) Reject(ctx context.Context, requestID uuid.UUID, adminID string) (*topup.Request, error) {
	req, err := s.topupRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Processed() {
		return nil, topup.ErrAlreadyProcessed{ID: requestID}
	}

	now := s.now()
	if err := s.topupRepo.MarkProcessed(ctx, req.ID, topup.StatusRejected, adminID, now); err != nil {
		return nil, err
	}

	s.logger.Info("Top-up request rejected",
		"request_id", req.ID.String(),
		"user_id", req.UserID,
		"admin_id", adminID,
	)

	req.Status = topup.StatusRejected
	req.ProcessedAt = &now
	req.ProcessedBy = adminID
	return req, nil
}

// CreateManualTopUp records an admin-initiated direct credit. An empty
// reference selects a system-generated id; otherwise the reference is
// validated against the method's grammar, checked for prior use and becomes
// the entry id itself, so the ledger's conditional insert is the final
// duplicate guard when two submissions race past the existence check.
func (s *TopUpServiceImpl) CreateManualTopUp(ctx context.Context, params ManualTopUpParams) (*ledger.Entry, error) {
	if params.Amount <= 0 {
		return nil, account.ErrInvalidAmount
	}

	acc, err := s.accountRepo.GetByUserID(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if acc.Blacklisted() {
		return nil, account.ErrAccountBlacklisted{UserID: params.UserID}
	}

	var entryID string
	if params.Reference == "" {
		if params.Method != shared.PaymentMethodCash {
			// E-wallet credits always carry the provider's reference
			return nil, refid.ErrInvalidReference{Reference: "", Method: params.Method}
		}
		entryID, err = s.allocator.SystemID(ctx)
	} else {
		entryID, err = s.allocator.Reference(ctx, params.Method, params.Reference)
	}
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		ID:            entryID,
		UserID:        params.UserID,
		Amount:        params.Amount,
		Type:          ledger.EntryTypeManualTopUp,
		PaymentMethod: params.Method,
		ReferenceID:   params.Reference,
		Description:   params.Note,
		CorrelationID: params.CorrelationID,
		CreatedAt:     s.now(),
	}

	err = s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.accountRepo.WithTx(tx).IncrementBalance(ctx, params.UserID, params.Amount); err != nil {
			return err
		}
		return s.ledgerRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.afterLedgerWrite(ctx, entry)
	s.logger.Info("Manual top-up recorded",
		"entry_id", entryID,
		"user_id", params.UserID,
		"amount", params.Amount,
		"payment_method", string(params.Method),
	)
	return entry, nil
}

// afterLedgerWrite handles the advisory tail of a successful credit: cache
// invalidation, metrics and the entry_created event. None of these can fail
// the financial result, which is already durable.
func (s *TopUpServiceImpl) afterLedgerWrite(ctx context.Context, entry *ledger.Entry) {
	if err := s.cache.Invalidate(ctx, entry.UserID); err != nil {
		s.logger.Warn("Failed to invalidate cached account", "user_id", entry.UserID, "error", err)
	}

	metrics.EntriesCreated.WithLabelValues(string(entry.Type)).Inc()

	event := producers.LedgerEvent{
		Type:          producers.EventEntryCreated,
		EntryID:       entry.ID,
		UserID:        entry.UserID,
		Amount:        entry.Amount,
		CorrelationID: entry.CorrelationID,
		Timestamp:     s.now(),
	}
	if err := s.publisher.Publish(ctx, entry.ID, event); err != nil {
		s.logger.Warn("Failed to publish ledger event", "entry_id", entry.ID, "error", err)
	}
}
