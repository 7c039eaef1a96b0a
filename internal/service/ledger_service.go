package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/netvend-ledger/internal/domain/ledger"
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(logger *slog.Logger, ledgerRepo ledger.Repository) LedgerService {
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// GetEntry retrieves an entry by id. Returns nil if not found
func (s *LedgerServiceImpl) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound{}) {
			s.logger.Info("Ledger entry not found", "entry_id", id)
			return nil, nil
		}
		s.logger.Error("Failed to get ledger entry", "entry_id", id, "error", err)
		return nil, err
	}
	return entry, nil
}

// ListEntries retrieves a filtered page of a user's entries plus the total
// count under the same filter
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, userID string, filter ledger.Filter, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.ledgerRepo.GetByUserID(ctx, userID, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledgerRepo.CountByUserID(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
