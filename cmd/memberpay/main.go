package main

import (
	"github.com/brightmoja/memberpay/internal/audit"
	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/feeschedule"
	"github.com/brightmoja/memberpay/internal/member"
	"github.com/brightmoja/memberpay/internal/migration"
	"github.com/brightmoja/memberpay/internal/observability"
	"github.com/brightmoja/memberpay/internal/payment"
	"github.com/brightmoja/memberpay/internal/providers"
	"github.com/brightmoja/memberpay/internal/ratelimit"
	"github.com/brightmoja/memberpay/internal/server"
	"github.com/brightmoja/memberpay/internal/session"
	"github.com/brightmoja/memberpay/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		feeschedule.Module,
		ratelimit.Module,

		// Functional domains
		session.Module,
		audit.Module,
		member.Module,
		providers.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
