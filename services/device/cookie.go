package device

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Service) TokenFromRequest(c echo.Context) string {
	cookie, err := c.Cookie(s.config.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Service) SetCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     s.config.CookieName,
		Value:    token,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/admin",
	})
}

func (s *Service) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/admin",
	})
}
