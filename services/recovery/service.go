package recovery

import (
	"context"
	"errors"

	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
)

type Service struct {
	manager  *Manager
	accounts account.Repository
	logger   *logging.Service
}

func NewService(manager *Manager, accounts account.Repository, logger *logging.Service) *Service {
	return &Service{
		manager:  manager,
		accounts: accounts,
		logger:   logger.Named("recovery"),
	}
}

func (s *Service) Manager() *Manager {
	return s.manager
}

// RedeemForAccount consumes the matching unused code. It reports false for
// an unknown or already used code, including when a concurrent request
// consumed the same code first.
func (s *Service) RedeemForAccount(ctx context.Context, accountID uint, code string) (bool, error) {
	stored, err := s.accounts.UnusedRecoveryCodes(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to load recovery codes",
			zap.Uint("account_id", accountID),
			zap.String("operation", "redeem_recovery_code"),
			zap.Error(err))
		return false, err
	}

	entries := make([]Entry, len(stored))
	for i, code := range stored {
		entries[i] = Entry{Hash: code.Hash, Used: code.Used}
	}

	index, err := s.manager.Redeem(code, entries)
	if errors.Is(err, ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	consumed, err := s.accounts.ConsumeRecoveryCode(ctx, accountID, stored[index].ID)
	if err != nil {
		s.logger.Error("failed to consume recovery code",
			zap.Uint("account_id", accountID),
			zap.String("operation", "consume_recovery_code"),
			zap.Error(err))
		return false, err
	}
	if !consumed {
		return false, nil
	}

	s.logger.Info("recovery code redeemed",
		zap.Uint("account_id", accountID),
		zap.Int("position", stored[index].Position),
		zap.Int("remaining", len(stored)-1))
	return true, nil
}

// Regenerate replaces every stored code, used or not, with a new batch.
func (s *Service) Regenerate(ctx context.Context, accountID uint, count int) (*Bundle, error) {
	bundle, err := s.manager.Generate(count)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.ReplaceRecoveryCodes(ctx, accountID, bundle.Hashed); err != nil {
		s.logger.Error("failed to replace recovery codes",
			zap.Uint("account_id", accountID),
			zap.String("operation", "regenerate_recovery_codes"),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("recovery codes regenerated", zap.Uint("account_id", accountID), zap.Int("count", count))
	return bundle, nil
}

func (s *Service) Remaining(ctx context.Context, accountID uint) (int, error) {
	codes, err := s.accounts.UnusedRecoveryCodes(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(codes), nil
}
