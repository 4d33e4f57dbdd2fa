package adminauth

import (
	"net/http"

	"github.com/tech-arch1tect/showcase/openapi"
)

const csrfHeader = "X-CSRF-Token"

// Document describes the admin login contract.
func Document() *openapi.Document {
	doc := openapi.New("Showcase Admin API", "1.0.0").
		Description("Administrator login for the showcase back office.").
		Tag("auth", "Admin authentication").
		CookieAuth("adminSession", "showcase_session", "Session cookie issued after a successful login")

	doc.Operation(http.MethodPost, "/admin/login").
		Summary("Log in with password and optional second factor").
		Tags("auth").
		HeaderParam(csrfHeader, "CSRF token from GET /admin/session").
		Body(LoginRequest{}, "Credentials").
		Response(http.StatusOK, SessionResponse{}, "Authenticated; the session cookie is rotated").
		Response(http.StatusAccepted, PendingResponse{}, "Password accepted; submit a code to /admin/login/verify").
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed or oversized input").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Invalid credentials").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Source is locked out", "Retry-After").
		Response(http.StatusInternalServerError, ErrorResponse{}, "Internal error").
		Build()

	doc.Operation(http.MethodPost, "/admin/login/verify").
		Summary("Complete a pending login with a second factor").
		Tags("auth").
		HeaderParam(csrfHeader, "CSRF token from GET /admin/session").
		Body(VerifyRequest{}, "TOTP or recovery code").
		Response(http.StatusOK, SessionResponse{}, "Authenticated; the session cookie is rotated").
		Response(http.StatusBadRequest, ErrorResponse{}, "Malformed or oversized input").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Invalid code or no pending login").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Source is locked out", "Retry-After").
		Response(http.StatusInternalServerError, ErrorResponse{}, "Internal error").
		Build()

	doc.Operation(http.MethodPost, "/admin/logout").
		Summary("Destroy the admin session").
		Tags("auth").
		HeaderParam(csrfHeader, "CSRF token from GET /admin/session").
		Security("adminSession").
		Response(http.StatusNoContent, nil, "Logged out").
		Response(http.StatusUnauthorized, nil, "No authenticated session").
		Build()

	doc.Operation(http.MethodGet, "/admin/session").
		Summary("Describe the current session and hand out a CSRF token").
		Tags("auth").
		Response(http.StatusOK, SessionResponse{}, "Session state").
		Build()

	return doc
}
