package csrf

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/showcase/config"
)

// Middleware protects the cookie-authenticated admin endpoints with echo's
// double-submit CSRF check. Safe methods receive the token cookie; unsafe
// methods must echo it back through TokenLookup.
func Middleware(cfg *config.CSRFConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	contextKey := cfg.ContextKey
	if contextKey == "" {
		contextKey = "csrf"
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    cfg.TokenLength,
		TokenLookup:    cfg.TokenLookup,
		ContextKey:     contextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieMaxAge:   cfg.CookieMaxAge,
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: sameSite(cfg.CookieSameSite),
	})
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// GetToken returns the token the middleware stored for this request, or ""
// when protection is disabled.
func GetToken(c echo.Context, cfg *config.CSRFConfig) string {
	key := cfg.ContextKey
	if key == "" {
		key = "csrf"
	}
	if token, ok := c.Get(key).(string); ok {
		return token
	}
	return ""
}
