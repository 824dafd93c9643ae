package audit

import (
	"github.com/brightmoja/memberpay/internal/audit/repository"
	"github.com/brightmoja/memberpay/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
