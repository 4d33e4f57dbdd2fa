package login

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/device"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"go.uber.org/zap"
)

const (
	maxUsernameLength = 255
	maxPasswordLength = 1024
	maxCodeLength     = 64
)

type Dependencies struct {
	Auth     *auth.Service
	TOTP     *totp.Service
	Recovery *recovery.Service
	Throttle *throttle.Service
	Devices  *device.Service
	Sessions Sessions
	Accounts account.Repository
	Logger   *logging.Service
}

// Service runs the admin login state machine: throttle gate, password
// check, optional second factor, then session issuance.
type Service struct {
	auth     *auth.Service
	totp     *totp.Service
	recovery *recovery.Service
	throttle *throttle.Service
	devices  *device.Service
	sessions Sessions
	accounts account.Repository
	logger   *logging.Service
}

func NewService(deps Dependencies) *Service {
	return &Service{
		auth:     deps.Auth,
		totp:     deps.TOTP,
		recovery: deps.Recovery,
		throttle: deps.Throttle,
		devices:  deps.Devices,
		sessions: deps.Sessions,
		accounts: deps.Accounts,
		logger:   deps.Logger.Named("login"),
	}
}

// Login evaluates a password login from req.Source. ctx must carry the
// request's loaded session. Rejections are reported in Result.Outcome; the
// returned error is a *ValidationError or *OperationalError.
func (s *Service) Login(ctx context.Context, req Request) (*Result, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Code = strings.TrimSpace(req.Code)
	if err := validateLogin(req); err != nil {
		return nil, err
	}

	if result, err := s.gate(ctx, req.Source); result != nil || err != nil {
		return result, err
	}

	acct, err := s.auth.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return s.reject(ctx, req.Source, req.Username, 0, OutcomeInvalidCredentials)
	}
	if err != nil {
		return nil, s.operational("authenticate", 0, err)
	}

	if !acct.TOTPEnabled {
		return s.complete(ctx, acct, MethodPassword, req.Source, req.UserAgent, false)
	}

	trusted, err := s.deviceTrusted(ctx, acct.ID, req.DeviceToken)
	if err != nil {
		return nil, s.operational("find_trusted_device", acct.ID, err)
	}
	if trusted {
		return s.complete(ctx, acct, MethodTrustedDevice, req.Source, req.UserAgent, false)
	}

	if req.Code == "" {
		if err := s.sessions.SetPending(ctx, acct.ID, acct.CredentialFingerprint(), req.TrustDevice); err != nil {
			return nil, s.operational("set_pending_session", acct.ID, err)
		}
		s.logger.Info("second factor required", zap.Uint("account_id", acct.ID), zap.String("source", req.Source))
		return &Result{Outcome: OutcomeSecondFactorRequired, AccountID: acct.ID}, nil
	}

	method, ok, err := s.verifySecondFactor(ctx, acct, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.reject(ctx, req.Source, acct.Username, acct.ID, OutcomeSecondFactorInvalid)
	}

	return s.complete(ctx, acct, method, req.Source, req.UserAgent, req.TrustDevice)
}

// CompleteSecondFactor finishes a login left pending by Login. A missing or
// expired pending login is reported as invalid credentials, as is one whose
// account credentials were replaced after the password check.
func (s *Service) CompleteSecondFactor(ctx context.Context, req SecondFactorRequest) (*Result, error) {
	req.Code = strings.TrimSpace(req.Code)
	if err := validateCode(req.Code, true); err != nil {
		return nil, err
	}

	if result, err := s.gate(ctx, req.Source); result != nil || err != nil {
		return result, err
	}

	pending, ok := s.sessions.GetPending(ctx)
	if !ok {
		return &Result{Outcome: OutcomeInvalidCredentials}, nil
	}

	acct, err := s.accounts.FindByID(ctx, pending.AccountID)
	if errors.Is(err, account.ErrAccountNotFound) {
		s.sessions.ClearPending(ctx)
		return &Result{Outcome: OutcomeInvalidCredentials}, nil
	}
	if err != nil {
		return nil, s.operational("find_account", pending.AccountID, err)
	}

	if !acct.TOTPEnabled || subtle.ConstantTimeCompare([]byte(pending.Binding), []byte(acct.CredentialFingerprint())) != 1 {
		s.sessions.ClearPending(ctx)
		s.logger.Warn("pending login outlived its credentials",
			zap.Uint("account_id", acct.ID),
			zap.String("source", req.Source))
		return &Result{Outcome: OutcomeInvalidCredentials, AccountID: acct.ID}, nil
	}

	method, ok, err := s.verifySecondFactor(ctx, acct, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.reject(ctx, req.Source, acct.Username, acct.ID, OutcomeSecondFactorInvalid)
	}

	return s.complete(ctx, acct, method, req.Source, req.UserAgent, pending.TrustDevice)
}

func (s *Service) gate(ctx context.Context, source string) (*Result, error) {
	status, err := s.throttle.IsLocked(ctx, source)
	if err != nil {
		return nil, s.operational("throttle_check", 0, err)
	}
	if status.Locked {
		s.logger.Warn("login attempt from locked source",
			zap.String("source", source),
			zap.Time("locked_until", status.Until))
		return &Result{Outcome: OutcomeLocked, RetryAfter: status.RetryAfter, LockedUntil: status.Until}, nil
	}
	return nil, nil
}

// verifySecondFactor treats digit-only input of the configured length as a
// TOTP code and anything else as a recovery code.
func (s *Service) verifySecondFactor(ctx context.Context, acct *account.AdminAccount, code string) (Method, bool, error) {
	if s.totp.Verifier().LooksLikeCode(code) {
		ok, err := s.totp.VerifyAccount(ctx, acct, code)
		if err != nil {
			return MethodTOTP, false, s.operational("verify_totp", acct.ID, err)
		}
		return MethodTOTP, ok, nil
	}

	ok, err := s.recovery.RedeemForAccount(ctx, acct.ID, code)
	if err != nil {
		return MethodRecoveryCode, false, s.operational("redeem_recovery_code", acct.ID, err)
	}
	return MethodRecoveryCode, ok, nil
}

func (s *Service) deviceTrusted(ctx context.Context, accountID uint, token string) (bool, error) {
	if s.devices == nil {
		return false, nil
	}
	return s.devices.IsTrusted(ctx, accountID, token)
}

func (s *Service) complete(ctx context.Context, acct *account.AdminAccount, method Method, source, userAgent string, trustDevice bool) (*Result, error) {
	handle, err := s.sessions.Issue(ctx, acct.ID)
	if err != nil {
		return nil, s.operational("issue_session", acct.ID, err)
	}

	if err := s.throttle.RecordSuccess(ctx, source); err != nil {
		s.logger.Error("failed to clear throttle window",
			zap.Uint("account_id", acct.ID),
			zap.String("source", source),
			zap.String("operation", "throttle_success"),
			zap.Error(err))
	}
	if acct.LoginFailedCount > 0 || acct.LockedUntil != nil {
		if err := s.accounts.ResetLoginFailures(ctx, acct.ID); err != nil {
			s.logger.Error("failed to reset login failure counters",
				zap.Uint("account_id", acct.ID),
				zap.String("operation", "reset_login_failures"),
				zap.Error(err))
		}
	}

	result := &Result{
		Outcome:   OutcomeAuthenticated,
		AccountID: acct.ID,
		Method:    method,
		Session:   handle,
	}

	if trustDevice && s.devices != nil && s.devices.Enabled() {
		token, expiresAt, err := s.devices.Trust(ctx, acct.ID, userAgent)
		if err != nil {
			s.logger.Error("failed to trust device",
				zap.Uint("account_id", acct.ID),
				zap.String("operation", "trust_device"),
				zap.Error(err))
		} else {
			result.DeviceToken = token
			result.DeviceExpiresAt = expiresAt
		}
	}

	s.logger.Info("admin authenticated",
		zap.Uint("account_id", acct.ID),
		zap.String("method", string(method)),
		zap.String("source", source))

	return result, nil
}

// reject records a failure for the source and mirrors it onto the operator
// view of the named account.
func (s *Service) reject(ctx context.Context, source, username string, accountID uint, outcome Outcome) (*Result, error) {
	status, err := s.throttle.RecordFailure(ctx, source)
	if err != nil {
		return nil, s.operational("throttle_failure", accountID, err)
	}

	var lockedUntil *time.Time
	if status.Locked {
		until := status.Until
		lockedUntil = &until
	}
	if err := s.accounts.RecordLoginFailure(ctx, username, lockedUntil); err != nil {
		s.logger.Error("failed to record login failure",
			zap.Uint("account_id", accountID),
			zap.String("operation", "record_login_failure"),
			zap.Error(err))
	}

	s.logger.Warn("login rejected",
		zap.String("outcome", string(outcome)),
		zap.String("source", source),
		zap.Uint("account_id", accountID),
		zap.Int("failures", status.Failures))

	return &Result{Outcome: outcome, AccountID: accountID}, nil
}

func (s *Service) operational(op string, accountID uint, err error) error {
	s.logger.Error("login operation failed",
		zap.Uint("account_id", accountID),
		zap.String("operation", op),
		zap.Time("at", time.Now().UTC()),
		zap.Error(err))
	return &OperationalError{Op: op, AccountID: accountID, Err: err}
}

func validateLogin(req Request) error {
	switch {
	case req.Username == "":
		return &ValidationError{Field: "username", Message: "is required"}
	case utf8.RuneCountInString(req.Username) > maxUsernameLength:
		return &ValidationError{Field: "username", Message: "is too long"}
	case req.Password == "":
		return &ValidationError{Field: "password", Message: "is required"}
	case len(req.Password) > maxPasswordLength:
		return &ValidationError{Field: "password", Message: "is too long"}
	}
	return validateCode(req.Code, false)
}

func validateCode(code string, required bool) error {
	if code == "" {
		if required {
			return &ValidationError{Field: "code", Message: "is required"}
		}
		return nil
	}
	if len(code) > maxCodeLength {
		return &ValidationError{Field: "code", Message: "is too long"}
	}
	return nil
}
