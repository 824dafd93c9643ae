package session

import (
	"github.com/brightmoja/memberpay/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(service.New),
)
