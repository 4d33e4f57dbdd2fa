package adminauth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/middleware/csrf"
	throttlemw "github.com/tech-arch1tect/showcase/middleware/throttle"
	"github.com/tech-arch1tect/showcase/services/device"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/login"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/session"
	"go.uber.org/zap"
)

const (
	codeValidation          = "validation_error"
	codeInvalidCredentials  = "invalid_credentials"
	codeSecondFactorInvalid = "second_factor_invalid"
	codeLocked              = "locked_out"
	codeInternal            = "internal_error"
)

// Handler serves the admin login endpoints.
type Handler struct {
	login    *login.Service
	throttle *throttle.Service
	sessions *session.Manager
	devices  *device.Service
	csrf     *config.CSRFConfig
	logger   *logging.Service
}

func NewHandler(
	loginSvc *login.Service,
	throttleSvc *throttle.Service,
	sessions *session.Manager,
	devices *device.Service,
	csrfCfg *config.CSRFConfig,
	logger *logging.Service,
) *Handler {
	return &Handler{
		login:    loginSvc,
		throttle: throttleSvc,
		sessions: sessions,
		devices:  devices,
		csrf:     csrfCfg,
		logger:   logger.Named("adminauth"),
	}
}

// Register mounts the endpoints under /admin. Every route loads the session
// and passes the CSRF check; the login routes are gated by the throttle
// before any body is parsed.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/admin", session.Middleware(h.sessions), csrf.Middleware(h.csrf))

	gate := throttlemw.Middleware(&throttlemw.Config{
		Checker:  h.throttle,
		OnLocked: h.locked,
		Logger:   h.logger,
	})

	g.POST("/login", h.Login, gate)
	g.POST("/login/verify", h.Verify, gate)
	g.POST("/logout", h.Logout, session.RequireAccount())
	g.GET("/session", h.Session)

	doc := Document()
	e.GET("/admin/openapi.json", doc.JSONHandler())
	e.GET("/admin/openapi.yaml", doc.YAMLHandler())
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request", Code: codeValidation})
	}

	result, err := h.login.Login(c.Request().Context(), login.Request{
		Username:    req.Username,
		Password:    req.Password,
		Code:        req.Code,
		TrustDevice: req.TrustDevice,
		DeviceToken: h.deviceToken(c),
		Source:      throttlemw.DefaultSource(c),
		UserAgent:   c.Request().UserAgent(),
	})
	return h.respond(c, result, err)
}

func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request", Code: codeValidation})
	}

	result, err := h.login.CompleteSecondFactor(c.Request().Context(), login.SecondFactorRequest{
		Code:      req.Code,
		Source:    throttlemw.DefaultSource(c),
		UserAgent: c.Request().UserAgent(),
	})
	return h.respond(c, result, err)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context()); err != nil {
		h.logger.Error("logout failed",
			zap.Uint("account_id", session.AccountID(c)),
			zap.String("operation", "logout"),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: codeInternal})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Session(c echo.Context) error {
	ctx := c.Request().Context()
	resp := SessionResponse{CSRFToken: csrf.GetToken(c, h.csrf)}

	if handle, ok := h.sessions.Current(ctx); ok {
		issuedAt := handle.IssuedAt
		resp.Authenticated = true
		resp.AccountID = handle.AccountID
		resp.IssuedAt = &issuedAt
	} else if _, pending := h.sessions.GetPending(ctx); pending {
		resp.SecondFactorPending = true
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) respond(c echo.Context, result *login.Result, err error) error {
	if err != nil {
		var validation *login.ValidationError
		if errors.As(err, &validation) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Error(), Code: codeValidation})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: codeInternal})
	}

	switch result.Outcome {
	case login.OutcomeAuthenticated:
		if result.DeviceToken != "" && h.devices != nil {
			h.devices.SetCookie(c, result.DeviceToken, result.DeviceExpiresAt)
		}
		issuedAt := result.Session.IssuedAt
		return c.JSON(http.StatusOK, SessionResponse{
			Authenticated: true,
			AccountID:     result.AccountID,
			IssuedAt:      &issuedAt,
			Method:        string(result.Method),
		})
	case login.OutcomeSecondFactorRequired:
		return c.JSON(http.StatusAccepted, PendingResponse{SecondFactorRequired: true})
	case login.OutcomeLocked:
		throttlemw.SetRetryAfter(c, throttle.Status{Locked: true, RetryAfter: result.RetryAfter})
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many failed attempts", Code: codeLocked})
	case login.OutcomeSecondFactorInvalid:
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid second factor", Code: codeSecondFactorInvalid})
	default:
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials", Code: codeInvalidCredentials})
	}
}

func (h *Handler) locked(c echo.Context, status throttle.Status) error {
	throttlemw.SetRetryAfter(c, status)
	return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many failed attempts", Code: codeLocked})
}

func (h *Handler) deviceToken(c echo.Context) string {
	if h.devices == nil {
		return ""
	}
	return h.devices.TokenFromRequest(c)
}
