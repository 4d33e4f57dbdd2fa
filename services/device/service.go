package device

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/zap"
)

const tokenBytes = 32

var ErrDisabled = errors.New("trusted devices are disabled")

// Service remembers browsers that completed a second factor. Only the
// SHA-256 fingerprint of the device token is stored.
type Service struct {
	config   config.TrustedDeviceConfig
	accounts account.Repository
	logger   *logging.Service
	now      func() time.Time
	random   io.Reader
}

func NewService(cfg config.TrustedDeviceConfig, accounts account.Repository, logger *logging.Service) *Service {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 30 * 24 * time.Hour
	}
	return &Service{
		config:   cfg,
		accounts: accounts,
		logger:   logger.Named("device"),
		now:      time.Now,
		random:   rand.Reader,
	}
}

func (s *Service) Enabled() bool {
	return s.config.Enabled
}

func (s *Service) Config() config.TrustedDeviceConfig {
	return s.config
}

// Trust registers a new device for the account and returns the plaintext
// token for the client cookie.
func (s *Service) Trust(ctx context.Context, accountID uint, userAgent string) (string, time.Time, error) {
	if !s.config.Enabled {
		return "", time.Time{}, ErrDisabled
	}

	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate device token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	device := &account.TrustedDevice{
		AccountID:   accountID,
		Fingerprint: Fingerprint(token),
		Label:       Label(userAgent),
		ExpiresAt:   now.Add(s.config.Lifetime),
	}
	if err := s.accounts.AddTrustedDevice(ctx, device); err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("device trusted",
		zap.Uint("account_id", accountID),
		zap.String("label", device.Label),
		zap.Time("expires_at", device.ExpiresAt))

	return token, device.ExpiresAt, nil
}

// IsTrusted reports whether token belongs to an unexpired device of the
// account. An empty token or disabled feature is simply untrusted.
func (s *Service) IsTrusted(ctx context.Context, accountID uint, token string) (bool, error) {
	if !s.config.Enabled || token == "" {
		return false, nil
	}

	device, err := s.accounts.FindTrustedDevice(ctx, accountID, Fingerprint(token), s.now())
	if err != nil {
		return false, err
	}
	return device != nil, nil
}

func (s *Service) RevokeAll(ctx context.Context, accountID uint) error {
	if err := s.accounts.RevokeTrustedDevices(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("trusted devices revoked", zap.Uint("account_id", accountID))
	return nil
}

func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Label summarises a user agent as "Browser Version on OS".
func Label(userAgent string) string {
	if userAgent == "" {
		return "Unknown Browser"
	}

	ua := useragent.Parse(userAgent)

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
	}

	if ua.OS == "" {
		return browser
	}
	return browser + " on " + ua.OS
}
