package login

import (
	"errors"

	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/device"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"github.com/tech-arch1tect/showcase/session"
	"go.uber.org/fx"
)

var ErrSessionsDisabled = errors.New("admin login requires sessions to be enabled")

type Params struct {
	fx.In

	Auth     *auth.Service
	TOTP     *totp.Service
	Recovery *recovery.Service
	Throttle *throttle.Service
	Devices  *device.Service  `optional:"true"`
	Sessions *session.Manager `optional:"true"`
	Accounts account.Repository
	Logger   *logging.Service
}

func ProvideService(p Params) (*Service, error) {
	if p.Sessions == nil {
		return nil, ErrSessionsDisabled
	}
	return NewService(Dependencies{
		Auth:     p.Auth,
		TOTP:     p.TOTP,
		Recovery: p.Recovery,
		Throttle: p.Throttle,
		Devices:  p.Devices,
		Sessions: p.Sessions,
		Accounts: p.Accounts,
		Logger:   p.Logger,
	}), nil
}

var Module = fx.Options(
	fx.Provide(device.ProvideService),
	fx.Provide(ProvideService),
)
