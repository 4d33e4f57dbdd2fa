package device

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
)

func ProvideService(cfg *config.Config, accounts account.Repository, logger *logging.Service) *Service {
	return NewService(cfg.TrustedDevice, accounts, logger)
}
