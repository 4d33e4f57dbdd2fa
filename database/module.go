package database

import (
	"github.com/tech-arch1tect/showcase/config"
	"github.com/tech-arch1tect/showcase/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

type Params struct {
	fx.In

	Config *config.Config
	Models []*ModelsOption `group:"models"`
	Logger *logging.Service `optional:"true"`
}

// ProvideDatabaseFx opens the database and migrates every model contributed to the "models" group.
func ProvideDatabaseFx(p Params) (*gorm.DB, error) {
	return ProvideDatabase(*p.Config, Merge(p.Models...), p.Logger)
}

// AsModels annotates a constructor so its *ModelsOption joins the migration group.
func AsModels(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"models"`))
}
