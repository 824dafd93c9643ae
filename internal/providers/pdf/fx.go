package pdf

import (
	"github.com/brightmoja/memberpay/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	return NewProvider(cfg.AppName)
}
