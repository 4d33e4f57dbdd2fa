package totp

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tech-arch1tect/showcase/config"
)

const (
	DefaultPeriod = 30
	DefaultSkew   = 1
)

// Verifier checks codes over discrete time steps. It holds no per-account
// state; the last accepted step is supplied by the caller.
type Verifier struct {
	period uint
	skew   uint
	digits otp.Digits
	now    func() time.Time
}

// Result carries the matched step when a code is accepted. Rejections
// carry no reason.
type Result struct {
	Accepted bool
	Step     int64
}

func NewVerifier(cfg config.TOTPConfig) *Verifier {
	v := &Verifier{
		period: cfg.Period,
		skew:   cfg.Skew,
		digits: otp.DigitsSix,
		now:    time.Now,
	}
	if v.period == 0 {
		v.period = DefaultPeriod
	}
	if cfg.Digits == 8 {
		v.digits = otp.DigitsEight
	}
	return v
}

func (v *Verifier) Digits() int {
	return v.digits.Length()
}

func (v *Verifier) Period() uint {
	return v.period
}

func (v *Verifier) CurrentStep() int64 {
	return v.StepAt(v.now())
}

func (v *Verifier) StepAt(t time.Time) int64 {
	return t.Unix() / int64(v.period)
}

// Code derives the RFC 6238 code of secret for the given step.
func (v *Verifier) Code(secret string, step int64) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, time.Unix(step*int64(v.period), 0).UTC(), totp.ValidateOpts{
		Period:    v.period,
		Digits:    v.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}

// Verify accepts code if it matches a step within the skew of the current
// step that is strictly after lastAcceptedStep. Steps are tried in
// ascending order. An error means the secret itself is unusable.
func (v *Verifier) Verify(secret, code string, lastAcceptedStep int64) (Result, error) {
	if !v.wellFormed(code) {
		return Result{}, nil
	}

	current := v.CurrentStep()
	skew := int64(v.skew)

	for step := current - skew; step <= current+skew; step++ {
		if step <= lastAcceptedStep {
			continue
		}

		expected, err := v.Code(secret, step)
		if err != nil {
			return Result{}, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return Result{Accepted: true, Step: step}, nil
		}
	}

	return Result{}, nil
}

func (v *Verifier) wellFormed(code string) bool {
	if len(code) != v.digits.Length() {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LooksLikeCode reports whether input has the shape of a TOTP code rather
// than a recovery code.
func (v *Verifier) LooksLikeCode(input string) bool {
	return v.wellFormed(input)
}
