package service

import (
	"context"
	"log/slog"

	"github.com/netvend-ledger/internal/domain/account"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	cache       AccountCache
	logger      *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(logger *slog.Logger, accountRepo account.Repository, cache AccountCache) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ResolveTag maps an RFID tag string to its account, reading through the
// cache. Cache failures degrade to the store.
func (s *AccountServiceImpl) ResolveTag(ctx context.Context, tag string) (*account.Account, error) {
	if cached, err := s.cache.Get(ctx, tag); err == nil && cached != nil {
		return cached, nil
	}

	acc, err := s.accountRepo.GetByUserID(ctx, tag)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, acc); err != nil {
		s.logger.Warn("Failed to cache account", "user_id", tag, "error", err)
	}

	return acc, nil
}

// RegisterAccount creates a fresh active account for a tag
func (s *AccountServiceImpl) RegisterAccount(ctx context.Context, userID string) (*account.Account, error) {
	acc, err := account.NewAccount(userID)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	return acc, nil
}
