package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"github.com/tech-arch1tect/showcase/services/vault"
	"go.uber.org/zap"
)

var (
	ErrUsernameRequired  = errors.New("username is required")
	ErrPasswordRequired  = auth.ErrPasswordRequired
	ErrSecretWithoutTOTP = errors.New("a TOTP secret cannot be set when TOTP is disabled")
)

// Options describe one provisioning run. An empty Secret generates a fresh
// one; RecoveryCount zero uses the configured default.
type Options struct {
	Username      string
	Password      string
	Secret        string
	RecoveryCount int
	DryRun        bool
	DisableTOTP   bool
}

// Result carries the plaintext material. It is the only time the secret
// and recovery codes are available.
type Result struct {
	AccountID     uint
	Username      string
	TOTPEnabled   bool
	Secret        string
	Key           *otp.Key
	RecoveryCodes []string
	DryRun        bool
}

func (r *Result) URI() string {
	if r.Key == nil {
		return ""
	}
	return r.Key.URL()
}

// Service is the out-of-band operator surface: enrollment, credential
// reset, recovery-code regeneration and unlock.
type Service struct {
	auth         *auth.Service
	vault        *vault.Vault
	totp         *totp.Service
	recovery     *recovery.Service
	throttle     *throttle.Service
	accounts     account.Repository
	logger       *logging.Service
	defaultCount int
}

func NewService(
	authSvc *auth.Service,
	v *vault.Vault,
	totpSvc *totp.Service,
	recoverySvc *recovery.Service,
	throttleSvc *throttle.Service,
	accounts account.Repository,
	defaultCount int,
	logger *logging.Service,
) *Service {
	if defaultCount <= 0 {
		defaultCount = recovery.DefaultCount
	}
	return &Service{
		auth:         authSvc,
		vault:        v,
		totp:         totpSvc,
		recovery:     recoverySvc,
		throttle:     throttleSvc,
		accounts:     accounts,
		logger:       logger.Named("provisioning"),
		defaultCount: defaultCount,
	}
}

// Provision replaces the credentials and second-factor material of an
// existing account in one transaction. Lockout state, the accepted TOTP
// step and trusted devices are cleared. DryRun builds the material without
// writing anything.
func (s *Service) Provision(ctx context.Context, opts Options) (*Result, error) {
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return nil, ErrUsernameRequired
	}

	acct, err := s.accounts.FindByUsername(ctx, opts.Username)
	if err != nil {
		return nil, err
	}

	creds, result, err := s.material(opts)
	if err != nil {
		return nil, err
	}
	result.AccountID = acct.ID

	if opts.DryRun {
		s.logger.Info("provisioning dry run", zap.Uint("account_id", acct.ID), zap.Bool("totp_enabled", result.TOTPEnabled))
		return result, nil
	}

	if err := s.accounts.ReplaceCredentials(ctx, acct.ID, *creds); err != nil {
		s.logger.Error("failed to replace credentials",
			zap.Uint("account_id", acct.ID),
			zap.String("operation", "provision"),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("account provisioned",
		zap.Uint("account_id", acct.ID),
		zap.Bool("totp_enabled", result.TOTPEnabled),
		zap.Int("recovery_codes", len(result.RecoveryCodes)))

	return result, nil
}

// Create enrolls a new account with the same material Provision would write.
func (s *Service) Create(ctx context.Context, opts Options) (*Result, error) {
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return nil, ErrUsernameRequired
	}

	creds, result, err := s.material(opts)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return result, nil
	}

	acct := &account.AdminAccount{
		Username:             opts.Username,
		PasswordHash:         creds.PasswordHash,
		TOTPEnabled:          creds.TOTPEnabled,
		TOTPSecretCiphertext: creds.Ciphertext,
		TOTPSecretIV:         creds.IV,
		TOTPSecretTag:        creds.Tag,
	}
	for i, hash := range creds.RecoveryHashes {
		acct.RecoveryCodes = append(acct.RecoveryCodes, account.RecoveryCode{Position: i, Hash: hash})
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	result.AccountID = acct.ID

	s.logger.Info("account created",
		zap.Uint("account_id", acct.ID),
		zap.Bool("totp_enabled", result.TOTPEnabled))

	return result, nil
}

// RegenerateRecoveryCodes replaces the account's recovery codes with a new
// batch, invalidating every earlier code.
func (s *Service) RegenerateRecoveryCodes(ctx context.Context, username string, count int) ([]string, error) {
	acct, err := s.accounts.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = s.defaultCount
	}

	bundle, err := s.recovery.Regenerate(ctx, acct.ID, count)
	if err != nil {
		return nil, err
	}
	return bundle.Plain, nil
}

// Unlock clears the operator-view lockout of the account and, when source
// is set, the throttle window of that source.
func (s *Service) Unlock(ctx context.Context, username, source string) error {
	if err := s.accounts.ClearLockout(ctx, strings.TrimSpace(username)); err != nil {
		return err
	}
	if source != "" {
		if err := s.throttle.Reset(ctx, source); err != nil {
			return fmt.Errorf("failed to reset throttle for source: %w", err)
		}
	}
	s.logger.Info("account unlocked", zap.String("source", source))
	return nil
}

func (s *Service) material(opts Options) (*account.Credentials, *Result, error) {
	if opts.Password == "" {
		return nil, nil, ErrPasswordRequired
	}
	if err := s.auth.ValidatePassword(opts.Password); err != nil {
		return nil, nil, err
	}
	if opts.DisableTOTP && opts.Secret != "" {
		return nil, nil, ErrSecretWithoutTOTP
	}

	hash, err := s.auth.HashPassword(opts.Password)
	if err != nil {
		return nil, nil, err
	}

	creds := &account.Credentials{PasswordHash: hash}
	result := &Result{Username: opts.Username, DryRun: opts.DryRun}

	if opts.DisableTOTP {
		return creds, result, nil
	}

	secret, err := s.secret(opts.Secret)
	if err != nil {
		return nil, nil, err
	}

	env, err := s.vault.Encrypt(secret)
	if err != nil {
		return nil, nil, err
	}

	count := opts.RecoveryCount
	if count == 0 {
		count = s.defaultCount
	}
	bundle, err := s.recovery.Manager().Generate(count)
	if err != nil {
		return nil, nil, err
	}

	key, err := s.totp.ProvisioningKey(opts.Username, secret)
	if err != nil {
		return nil, nil, err
	}

	creds.TOTPEnabled = true
	creds.Ciphertext = env.Ciphertext
	creds.IV = env.IV
	creds.Tag = env.Tag
	creds.RecoveryHashes = bundle.Hashed

	result.TOTPEnabled = true
	result.Secret = secret
	result.Key = key
	result.RecoveryCodes = bundle.Plain

	return creds, result, nil
}

func (s *Service) secret(override string) (string, error) {
	if override == "" {
		return vault.GenerateSecret()
	}
	return vault.NormalizeSecret(override)
}
