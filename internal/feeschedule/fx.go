package feeschedule

import "go.uber.org/fx"

var Module = fx.Module("feeschedule",
	fx.Provide(NewHolder),
)
