package totp

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/vault"
	"go.uber.org/zap"
)

var (
	ErrTOTPNotEnabled = errors.New("TOTP is not enabled for this account")
	ErrInvalidCode    = errors.New("invalid TOTP code")
)

type Service struct {
	verifier *Verifier
	vault    *vault.Vault
	accounts account.Repository
	issuer   string
	logger   *logging.Service
}

func NewService(cfg config.TOTPConfig, verifier *Verifier, v *vault.Vault, accounts account.Repository, logger *logging.Service) *Service {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "Showcase Admin"
	}

	return &Service{
		verifier: verifier,
		vault:    v,
		accounts: accounts,
		issuer:   issuer,
		logger:   logger.Named("totp"),
	}
}

func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// VerifyAccount checks code against the account's secret and atomically
// advances its last accepted step. A code is accepted at most once.
// Integrity and repository failures are returned as errors; a rejected
// code is (false, nil).
func (s *Service) VerifyAccount(ctx context.Context, acct *account.AdminAccount, code string) (bool, error) {
	if !acct.TOTPEnabled {
		return false, ErrTOTPNotEnabled
	}

	secret, err := s.vault.Decrypt(&vault.Envelope{
		Ciphertext: acct.TOTPSecretCiphertext,
		IV:         acct.TOTPSecretIV,
		Tag:        acct.TOTPSecretTag,
	})
	if err != nil {
		s.logger.Error("TOTP secret failed integrity check",
			zap.Uint("account_id", acct.ID),
			zap.String("operation", "verify_totp"))
		return false, err
	}

	result, err := s.verifier.Verify(secret, code, acct.LastTOTPStep)
	if err != nil {
		s.logger.Error("TOTP code derivation failed",
			zap.Uint("account_id", acct.ID),
			zap.String("operation", "verify_totp"),
			zap.Error(err))
		return false, err
	}
	if !result.Accepted {
		return false, nil
	}

	// The update only matches the step and envelope this snapshot was read
	// with. Losing it means a concurrent login or provisioning got there first.
	advanced, err := s.accounts.AdvanceTOTPStep(ctx, acct.ID, acct.TOTPSecretIV, acct.LastTOTPStep, result.Step)
	if err != nil {
		s.logger.Error("failed to persist TOTP step",
			zap.Uint("account_id", acct.ID),
			zap.String("operation", "advance_totp_step"),
			zap.Error(err))
		return false, err
	}
	if !advanced {
		s.logger.Warn("TOTP step advance lost to a concurrent update", zap.Uint("account_id", acct.ID))
		return false, nil
	}

	acct.LastTOTPStep = result.Step
	return true, nil
}

// ProvisioningKey builds the otpauth key for secret, from which the URI and
// QR image are derived.
func (s *Service) ProvisioningKey(accountName, secret string) (*otp.Key, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return nil, vault.ErrInvalidSecret
	}

	digits := otp.DigitsSix
	if s.verifier.Digits() == 8 {
		digits = otp.DigitsEight
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      s.verifier.Period(),
		Secret:      raw,
		Digits:      digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key, nil
}
