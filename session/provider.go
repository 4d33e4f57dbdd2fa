package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/tech-arch1tect/showcase/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const cleanupInterval = 5 * time.Minute

type Options struct {
	Store scs.Store
}

type Params struct {
	fx.In

	Config  *config.Config
	Options *Options `optional:"true"`
	DB      *gorm.DB `optional:"true"`
}

func ProvideSessionManager(p Params) (*Manager, error) {
	return NewManagerFromConfig(p.Config.Session, p.Options, p.DB)
}

// NewManagerFromConfig builds the scs manager for the configured store. It
// returns nil when sessions are disabled.
func NewManagerFromConfig(cfg config.SessionConfig, opts *Options, db *gorm.DB) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var store scs.Store
	var err error

	if opts != nil && opts.Store != nil {
		store = opts.Store
	} else {
		switch cfg.Store {
		case "memory":
			store = NewMemoryStore()
		case "database":
			if db == nil {
				return nil, fmt.Errorf("database store requires database to be enabled")
			}
			store, err = NewDatabaseStore(db, cleanupInterval)
			if err != nil {
				return nil, fmt.Errorf("failed to create database session store: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
		}
	}

	return NewManager(cfg, store), nil
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

var Module = fx.Module("session",
	fx.Provide(ProvideSessionManager),
)
