package login

import (
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/showcase/services/auth"
)

// ErrInvalidCredentials is the single authentication failure callers see,
// whichever check failed.
var ErrInvalidCredentials = auth.ErrInvalidCredentials

// ValidationError reports a malformed request. No account or throttle state
// has been touched when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ThrottledError struct {
	RetryAfter time.Duration
	Until      time.Time
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

// OperationalError wraps an integrity or repository failure. Its message is
// for logs; clients get an undifferentiated failure.
type OperationalError struct {
	Op        string
	AccountID uint
	Err       error
}

func (e *OperationalError) Error() string {
	return fmt.Sprintf("login %s: %v", e.Op, e.Err)
}

func (e *OperationalError) Unwrap() error {
	return e.Err
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsOperationalError(err error) bool {
	var target *OperationalError
	return errors.As(err, &target)
}
