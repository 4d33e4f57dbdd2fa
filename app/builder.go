package app

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/database"
	"github.com/tech-arch1tect/showcase/handlers/adminauth"
	"github.com/tech-arch1tect/showcase/server"
	"github.com/tech-arch1tect/showcase/services/account"
	"github.com/tech-arch1tect/showcase/services/auth"
	"github.com/tech-arch1tect/showcase/services/logging"
	"github.com/tech-arch1tect/showcase/services/login"
	"github.com/tech-arch1tect/showcase/services/provisioning"
	"github.com/tech-arch1tect/showcase/services/recovery"
	"github.com/tech-arch1tect/showcase/services/throttle"
	"github.com/tech-arch1tect/showcase/services/totp"
	"github.com/tech-arch1tect/showcase/services/vault"
	"github.com/tech-arch1tect/showcase/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	http      bool
	sessions  *session.Options
	fxOptions []fx.Option
	errors    []error
}

// NewApp starts a builder for the full admin application: the account
// services plus the HTTP login surface.
func NewApp() *AppBuilder {
	return &AppBuilder{http: true}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg, err := config.Load()
	if err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithoutHTTP builds only the account services, for offline tooling that
// must not open a listener.
func (b *AppBuilder) WithoutHTTP() *AppBuilder {
	b.http = false
	return b
}

func (b *AppBuilder) WithSessionOptions(opts *session.Options) *AppBuilder {
	b.sessions = opts
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}

	if b.config == nil {
		b.WithAutoConfig()
		if len(b.errors) > 0 {
			return nil, errors.Join(b.errors...)
		}
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	app := &App{config: b.config}

	options := b.buildFxOptions()
	options = append(options,
		fx.Populate(&app.logger, &app.db, &app.provisioning),
	)
	if b.http {
		options = append(options, fx.Populate(&app.server))
	}

	fxApp := fx.New(options...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if err := b.config.Validate(); err != nil {
		return err
	}
	if b.http && !b.config.Session.Enabled {
		return errors.New("the admin server requires sessions to be enabled")
	}
	return nil
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		logging.Module,
		database.Module,
		account.Module,
		auth.Module,
		vault.Module,
		totp.Module,
		recovery.Module,
		throttle.Module,
		provisioning.Module,
	}

	if b.http {
		options = append(options,
			fx.Supply(b.sessions),
			session.Module,
			login.Module,
			server.Module,
			adminauth.Module,
		)
	}

	return append(options, b.fxOptions...)
}
