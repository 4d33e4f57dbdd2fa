package recovery

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/fx"
)

func ProvideManager(cfg *config.Config) *Manager {
	return NewManager(cfg.Recovery.BcryptCost)
}

func ProvideService(manager *Manager, accounts account.Repository, logger *logging.Service) *Service {
	return NewService(manager, accounts, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideManager),
	fx.Provide(ProvideService),
)
