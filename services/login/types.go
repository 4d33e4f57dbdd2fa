package login

import (
	"context"
	"time"

	"github.com/tech-arch1tect/showcase/session"
)

type Outcome string

const (
	OutcomeAuthenticated        Outcome = "authenticated"
	OutcomeInvalidCredentials   Outcome = "invalid_credentials"
	OutcomeLocked               Outcome = "locked_out"
	OutcomeSecondFactorRequired Outcome = "second_factor_required"
	OutcomeSecondFactorInvalid  Outcome = "second_factor_invalid"
)

type Method string

const (
	MethodPassword      Method = "password"
	MethodTOTP          Method = "totp"
	MethodRecoveryCode  Method = "recovery_code"
	MethodTrustedDevice Method = "trusted_device"
)

// Request is a password login. Code is optional; when the account has a
// second factor and Code is empty the login becomes pending.
type Request struct {
	Username    string
	Password    string
	Code        string
	TrustDevice bool
	DeviceToken string
	Source      string
	UserAgent   string
}

// SecondFactorRequest completes a pending login held in the session.
type SecondFactorRequest struct {
	Code      string
	Source    string
	UserAgent string
}

type Result struct {
	Outcome         Outcome
	AccountID       uint
	Method          Method
	Session         *session.Handle
	RetryAfter      time.Duration
	LockedUntil     time.Time
	DeviceToken     string
	DeviceExpiresAt time.Time
}

// Err maps a rejected outcome onto the error taxonomy. Authenticated and
// pending outcomes return nil.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeLocked:
		return &ThrottledError{RetryAfter: r.RetryAfter, Until: r.LockedUntil}
	case OutcomeInvalidCredentials, OutcomeSecondFactorInvalid:
		return ErrInvalidCredentials
	default:
		return nil
	}
}

// Sessions is the session state the login flow writes to.
type Sessions interface {
	Issue(ctx context.Context, accountID uint) (*session.Handle, error)
	SetPending(ctx context.Context, accountID uint, binding string, trustDevice bool) error
	GetPending(ctx context.Context) (*session.Pending, bool)
	ClearPending(ctx context.Context)
}
