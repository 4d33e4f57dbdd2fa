package totp

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/vault"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, verifier *Verifier, v *vault.Vault, accounts account.Repository, logger *logging.Service) *Service {
	return NewService(cfg.TOTP, verifier, v, accounts, logger)
}

func ProvideVerifier(cfg *config.Config) *Verifier {
	return NewVerifier(cfg.TOTP)
}

var Module = fx.Options(
	fx.Provide(ProvideVerifier),
	fx.Provide(NewProvider),
)
