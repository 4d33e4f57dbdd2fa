package adminauth

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/device"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/login"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/session"
	"go.uber.org/fx"
)

var ErrSessionsDisabled = errors.New("admin endpoints require sessions to be enabled")

type Params struct {
	fx.In

	Config   *config.Config
	Login    *login.Service
	Throttle *throttle.Service
	Sessions *session.Manager `optional:"true"`
	Devices  *device.Service  `optional:"true"`
	Logger   *logging.Service
}

func ProvideHandler(p Params) (*Handler, error) {
	if p.Sessions == nil {
		return nil, ErrSessionsDisabled
	}
	return NewHandler(p.Login, p.Throttle, p.Sessions, p.Devices, &p.Config.CSRF, p.Logger), nil
}

func register(e *echo.Echo, h *Handler) {
	h.Register(e)
}

var Module = fx.Module("adminauth",
	fx.Provide(ProvideHandler),
	fx.Invoke(register),
)
