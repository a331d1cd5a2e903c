// Package migration brings the schema up to date on boot.
package migration

import (
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/orbit/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

func Run(conn *gorm.DB, log *zap.Logger) error {
	if err := conn.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.Product{},
		&catalogdomain.Price{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
	); err != nil {
		return err
	}

	log.Info("schema migrated")
	return nil
}
