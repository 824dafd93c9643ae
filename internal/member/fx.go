package member

import (
	"github.com/brightmoja/memberpay/internal/member/repository"
	"github.com/brightmoja/memberpay/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
