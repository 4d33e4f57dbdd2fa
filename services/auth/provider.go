package auth

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/fx"
)

func ProvideAuthService(cfg *config.Config, accounts account.Repository, logger *logging.Service) *Service {
	return NewService(&cfg.Auth, accounts, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
