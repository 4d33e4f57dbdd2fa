package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/database"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(database.AsModels(NewModelsOption)),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideService),
)

func NewModelsOption(cfg *config.Config) *database.ModelsOption {
	if cfg.Throttle.Store != "database" {
		return nil
	}
	return database.WithModels(Models()...)
}

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB `optional:"true"`
	Logger    *logging.Service
}

func ProvideStore(p StoreParams) (Store, error) {
	store, err := NewStore(p.Config.Throttle, p.DB)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if rs, ok := store.(*RedisStore); ok {
				if err := rs.client.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("failed to reach throttle redis: %w", err)
				}
			}
			if sw, ok := store.(*DatabaseStore); ok {
				go sweep(sw, p.Config.Throttle.SweepInterval, p.Logger)
			}
			p.Logger.Info("login throttle store ready", zap.String("store", p.Config.Throttle.Store))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			switch st := store.(type) {
			case *MemoryStore:
				st.Close()
			case *RedisStore:
				return st.Close()
			case *DatabaseStore:
				st.stopSweep()
			}
			return nil
		},
	})

	return store, nil
}

func ProvideService(cfg *config.Config, store Store, logger *logging.Service) *Service {
	return NewService(cfg.Throttle, store, logger)
}

// NewStore builds the store named by cfg.Store: memory, database or redis.
func NewStore(cfg config.ThrottleConfig, db *gorm.DB) (Store, error) {
	retention := max(cfg.Window, cfg.Lockout)

	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(cfg.SweepInterval, retention), nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("throttle store %q requires a database", cfg.Store)
		}
		return NewDatabaseStore(db, retention), nil
	case "redis":
		return NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported throttle store: %s (supported: memory, database, redis)", cfg.Store)
	}
}

func sweep(store *DatabaseStore, interval time.Duration, logger *logging.Service) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-store.done():
			return
		case now := <-ticker.C:
			if err := store.Sweep(context.Background(), now); err != nil {
				logger.Warn("throttle sweep failed", zap.Error(err))
			}
		}
	}
}
