package session

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	sessionManagerKey = "session_manager"
	accountIDKey      = "session_account_id"

	managerContextKey contextKey = "session_manager"
)

// Middleware loads the session for each request and commits it, with the
// cookie, before the response header is written.
func Middleware(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if manager == nil {
				return next(c)
			}

			c.Set(sessionManagerKey, manager)

			var handlerErr error

			rw := &responseWriterWrapper{
				ResponseWriter: c.Response().Writer,
				echo:           c.Response(),
			}

			handler := manager.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := context.WithValue(r.Context(), managerContextKey, manager)
				c.SetRequest(r.WithContext(ctx))
				c.Response().Writer = w
				handlerErr = next(c)
			}))

			handler.ServeHTTP(rw, c.Request())
			return handlerErr
		}
	}
}

// responseWriterWrapper keeps echo's recorded status in step with writes
// that go through the scs writer.
type responseWriterWrapper struct {
	http.ResponseWriter
	echo *echo.Response
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if w.echo.Status == 0 {
		w.echo.Status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func GetManager(c echo.Context) *Manager {
	if manager, ok := c.Get(sessionManagerKey).(*Manager); ok {
		return manager
	}
	return nil
}

func GetManagerFromContext(ctx context.Context) *Manager {
	if manager, ok := ctx.Value(managerContextKey).(*Manager); ok {
		return manager
	}
	return nil
}

// RequireAccount rejects requests without an authenticated session and
// exposes the account id to handlers through AccountID.
func RequireAccount() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			manager := GetManager(c)
			if manager == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			handle, ok := manager.Current(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			c.Set(accountIDKey, handle.AccountID)
			return next(c)
		}
	}
}

func AccountID(c echo.Context) uint {
	if id, ok := c.Get(accountIDKey).(uint); ok {
		return id
	}
	return 0
}
