package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orbit/internal/catalog"
	"github.com/smallbiznis/orbit/internal/clock"
	"github.com/smallbiznis/orbit/internal/config"
	"github.com/smallbiznis/orbit/internal/customer"
	"github.com/smallbiznis/orbit/internal/invoice"
	"github.com/smallbiznis/orbit/internal/migration"
	"github.com/smallbiznis/orbit/internal/notification"
	"github.com/smallbiznis/orbit/internal/observability"
	"github.com/smallbiznis/orbit/internal/payment"
	"github.com/smallbiznis/orbit/internal/providers/email"
	"github.com/smallbiznis/orbit/internal/scheduler"
	"github.com/smallbiznis/orbit/internal/server"
	"github.com/smallbiznis/orbit/internal/subscription"
	"github.com/smallbiznis/orbit/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		payment.Module,
		email.Module,
		catalog.Module,
		customer.Module,
		invoice.Module,
		subscription.Module,
		notification.Module,
		scheduler.Module,

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
