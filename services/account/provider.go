package account

import (
	"github.com/tech-arch1tect/showcase/database"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Provide(database.AsModels(NewModelsOption)),
)

func NewModelsOption() *database.ModelsOption {
	return database.WithModels(Models()...)
}
