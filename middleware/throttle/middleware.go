package throttle

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"go.uber.org/zap"
)

// Checker is the part of the login throttle the gate needs.
type Checker interface {
	IsLocked(ctx context.Context, source string) (throttle.Status, error)
}

type Config struct {
	Checker    Checker
	SourceFunc func(c echo.Context) string
	OnLocked   func(c echo.Context, status throttle.Status) error
	Logger     *logging.Service
}

// Middleware rejects requests from locked-out sources before the handler
// parses credentials or spends a password hash comparison.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.SourceFunc == nil {
		cfg.SourceFunc = DefaultSource
	}
	if cfg.OnLocked == nil {
		cfg.OnLocked = DefaultOnLocked
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Checker == nil {
				return next(c)
			}

			source := cfg.SourceFunc(c)
			status, err := cfg.Checker.IsLocked(c.Request().Context(), source)
			if err != nil {
				cfg.Logger.Error("throttle check failed",
					zap.String("source", source),
					zap.String("operation", "throttle_gate"),
					zap.Error(err))
				return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
			}

			if status.Locked {
				return cfg.OnLocked(c, status)
			}

			return next(c)
		}
	}
}

// DefaultSource keys on the client address echo resolved through the
// configured IP extractor.
func DefaultSource(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" {
		realIP = "unknown"
	}
	return realIP
}

func DefaultOnLocked(c echo.Context, status throttle.Status) error {
	SetRetryAfter(c, status)
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

func SetRetryAfter(c echo.Context, status throttle.Status) {
	c.Response().Header().Set("Retry-After", strconv.Itoa(status.RetryAfterSeconds()))
}
