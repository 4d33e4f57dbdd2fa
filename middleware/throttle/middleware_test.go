package throttle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/showcase/services/throttle"
)

type stubChecker struct {
	locked  map[string]throttle.Status
	err     error
	sources []string
}

func (s *stubChecker) IsLocked(_ context.Context, source string) (throttle.Status, error) {
	s.sources = append(s.sources, source)
	if s.err != nil {
		return throttle.Status{}, s.err
	}
	return s.locked[source], nil
}

func serve(mw echo.MiddlewareFunc, remoteAddr string) (*httptest.ResponseRecorder, error, bool) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(handler)(c)
	return rec, err, called
}

func TestMiddleware(t *testing.T) {
	checker := &stubChecker{locked: map[string]throttle.Status{
		"10.0.0.1": {Locked: true, RetryAfter: 90*time.Second + time.Millisecond},
	}}
	mw := Middleware(&Config{Checker: checker})

	t.Run("locked source is rejected", func(t *testing.T) {
		rec, err, called := serve(mw, "10.0.0.1:4000")

		if called {
			t.Error("handler must not run for a locked source")
		}
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("expected echo.HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusTooManyRequests {
			t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, httpErr.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "91" {
			t.Errorf("expected Retry-After 91, got %q", got)
		}
	})

	t.Run("other source passes", func(t *testing.T) {
		rec, err, called := serve(mw, "10.0.0.2:4000")

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !called {
			t.Error("expected handler to run")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})

	t.Run("keys on the client address", func(t *testing.T) {
		if last := checker.sources[len(checker.sources)-1]; last != "10.0.0.2" {
			t.Errorf("expected source 10.0.0.2, got %q", last)
		}
	})
}

func TestMiddleware_CheckerError(t *testing.T) {
	mw := Middleware(&Config{Checker: &stubChecker{err: errors.New("redis down")}})

	_, err, called := serve(mw, "10.0.0.1:4000")

	if called {
		t.Error("handler must not run when the throttle cannot be read")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 HTTPError, got %v", err)
	}
}

func TestMiddleware_Defaults(t *testing.T) {
	cfg := &Config{}
	mw := Middleware(cfg)

	if cfg.SourceFunc == nil {
		t.Error("expected default source func")
	}
	if cfg.OnLocked == nil {
		t.Error("expected default locked handler")
	}

	_, err, called := serve(mw, "10.0.0.1:4000")
	if err != nil || !called {
		t.Error("middleware without a checker should pass through")
	}
}

func TestDefaultSource(t *testing.T) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	c := e.NewContext(req, httptest.NewRecorder())

	if got := DefaultSource(c); got != "192.168.1.5" {
		t.Errorf("expected 192.168.1.5, got %q", got)
	}
}
