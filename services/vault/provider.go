package vault

import (
	"github.com/tech-arch1tect/showcase/config"
	"go.uber.org/fx"
)

func ProvideVault(cfg *config.Config) (*Vault, error) {
	key, err := cfg.TOTP.Key()
	if err != nil {
		return nil, err
	}
	return New(key, cfg.TOTP.Cipher)
}

var Module = fx.Options(
	fx.Provide(ProvideVault),
)
