package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/logging"
)

func testConfig(proxies ...string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			TrustedProxies: proxies,
		},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()

	t.Run("with logger", func(t *testing.T) {
		loggerService := logging.NewNop()
		server := New(cfg, loggerService)

		if server == nil {
			t.Fatal("expected server to be created")
		}
		if server.cfg != cfg {
			t.Error("expected config to be set")
		}
		if server.logger != loggerService {
			t.Error("expected logger to be set")
		}
		if server.echo == nil {
			t.Error("expected echo instance to be created")
		}
	})

	t.Run("without logger", func(t *testing.T) {
		server := New(cfg, nil)

		if server == nil {
			t.Fatal("expected server to be created")
		}
		if server.logger != nil {
			t.Error("expected logger to be nil")
		}
	})

	t.Run("addr", func(t *testing.T) {
		if got := New(cfg, nil).Addr(); got != "localhost:8080" {
			t.Errorf("expected localhost:8080, got %s", got)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	server := New(testConfig(), nil)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	}
	server.Get("/test", handler)
	server.Post("/test-post", handler)
	server.Group("/admin").GET("/test", handler)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/test", http.StatusOK},
		{http.MethodPost, "/test-post", http.StatusOK},
		{http.MethodGet, "/admin/test", http.StatusOK},
		{http.MethodGet, healthPath, http.StatusOK},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestServer_Recover(t *testing.T) {
	server := New(testConfig(), nil)
	server.Get("/panic", func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	server := New(testConfig(), nil)
	server.Post("/admin/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(strings.Repeat("x", 32*1024)))
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rec.Code)
	}
}

func TestServer_Echo(t *testing.T) {
	server := New(testConfig(), nil)

	if server.Echo() != server.echo {
		t.Error("expected Echo() to return the internal echo instance")
	}
}

func TestServer_Shutdown(t *testing.T) {
	server := New(testConfig(), nil)

	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("expected shutdown of an idle server to succeed, got %v", err)
	}
}

func TestConfigureTrustedProxies(t *testing.T) {
	tests := []struct {
		name           string
		trustedProxies []string
		remoteAddr     string
		expectedIP     string
	}{
		{
			name:           "no trusted proxies ignores forwarded header",
			trustedProxies: []string{},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "10.0.0.5",
		},
		{
			name:           "empty proxy in list",
			trustedProxies: []string{""},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "10.0.0.5",
		},
		{
			name:           "private peer is not trusted implicitly",
			trustedProxies: []string{"192.168.1.1"},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "10.0.0.5",
		},
		{
			name:           "trusted IPv4 address",
			trustedProxies: []string{"10.0.0.5"},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "203.0.113.7",
		},
		{
			name:           "trusted IPv4 CIDR",
			trustedProxies: []string{"10.0.0.0/24"},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "203.0.113.7",
		},
		{
			name:           "trusted IPv6 address",
			trustedProxies: []string{"2001:db8::1"},
			remoteAddr:     "[2001:db8::1]:4000",
			expectedIP:     "203.0.113.7",
		},
		{
			name:           "invalid proxy",
			trustedProxies: []string{"invalid-proxy"},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "10.0.0.5",
		},
		{
			name:           "mixed valid and invalid",
			trustedProxies: []string{"10.0.0.5", "invalid-proxy"},
			remoteAddr:     "10.0.0.5:4000",
			expectedIP:     "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			configureTrustedProxies(e, tt.trustedProxies, logging.NewNop())

			if e.IPExtractor == nil {
				t.Fatal("expected IPExtractor to be set")
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.7")

			if got := e.IPExtractor(req); got != tt.expectedIP {
				t.Errorf("expected %s, got %s", tt.expectedIP, got)
			}
		})
	}
}

func TestShortenHandlerName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "short handler name",
			input:    "adminauth.Login",
			expected: "adminauth.Login",
		},
		{
			name:     "handler with slash",
			input:    "github.com/tech-arch1tect/showcase/handlers/adminauth.(*Handler).Login-fm",
			expected: "tech-arch1tect/showcase/handlers/adminauth.(*Handler).Login-fm",
		},
		{
			name:     "very long handler name",
			input:    strings.Repeat("a", 100),
			expected: strings.Repeat("a", 77) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shortenHandlerName(tt.input)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}
