package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPasswordRequired      = errors.New("password is required")
	ErrPasswordTooLong       = fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)
)

// MaxPasswordBytes is the longest input bcrypt will hash.
const MaxPasswordBytes = 72

// Service is the credential store: it hashes admin passwords and checks
// submitted credentials against the stored digest.
type Service struct {
	config   *config.AuthConfig
	accounts account.Repository
	logger   *logging.Service

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(cfg *config.AuthConfig, accounts account.Repository, logger *logging.Service) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config:   cfg,
		accounts: accounts,
		logger:   logger.Named("auth"),
	}
}

func (s *Service) ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}

	if len(password) < s.config.MinLength {
		s.logger.Debug("password rejected: insufficient length",
			zap.Int("length", len(password)),
			zap.Int("min_required", s.config.MinLength))
		return fmt.Errorf("password must be at least %d characters", s.config.MinLength)
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.config.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		s.logger.Debug("password rejected: missing requirements", zap.Strings("missing_requirements", missing))
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Authenticate returns the account whose password matches. Unknown users
// and wrong passwords both yield ErrInvalidCredentials after one bcrypt
// comparison; repository failures are returned as they are.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*account.AdminAccount, error) {
	acct, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		s.burnComparison(password)
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("credential lookup failed", zap.String("operation", "authenticate"), zap.Error(err))
		return nil, err
	}

	if err := s.VerifyPassword(acct.PasswordHash, password); err != nil {
		s.logger.Debug("password mismatch", zap.Uint("account_id", acct.ID))
		return nil, ErrInvalidCredentials
	}

	return acct, nil
}

// Verify reports whether the credentials are valid. It fails closed.
func (s *Service) Verify(ctx context.Context, username, password string) bool {
	acct, err := s.Authenticate(ctx, username, password)
	return err == nil && acct != nil
}

func (s *Service) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		seed := make([]byte, 32)
		_, _ = rand.Read(seed)
		s.dummyHash, _ = bcrypt.GenerateFromPassword(seed, s.config.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}
