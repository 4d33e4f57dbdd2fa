package provisioning

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"github.com/tech-arch1tect/showcase/services/vault"
	"go.uber.org/fx"
)

func ProvideService(
	cfg *config.Config,
	authSvc *auth.Service,
	v *vault.Vault,
	totpSvc *totp.Service,
	recoverySvc *recovery.Service,
	throttleSvc *throttle.Service,
	accounts account.Repository,
	logger *logging.Service,
) *Service {
	return NewService(authSvc, v, totpSvc, recoverySvc, throttleSvc, accounts, cfg.Recovery.CodeCount, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideService),
)
