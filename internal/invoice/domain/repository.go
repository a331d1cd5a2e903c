package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionBilling is the cross-entity snapshot needed to invoice a
// subscription.
type SubscriptionBilling struct {
	SubscriptionID snowflake.ID
	CustomerID     snowflake.ID
	Status         string
	Amount         decimal.Decimal
	Currency       string
}

// CustomerRefs are the gateway references of a customer.
type CustomerRefs struct {
	CustomerID         snowflake.ID
	Email              string
	ProviderCustomerID string
	PaymentMethodRef   string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*Invoice, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id snowflake.ID, paymentRef string, paidAt time.Time) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) error

	FindSubscriptionBilling(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*SubscriptionBilling, error)
	FindCustomerRefs(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*CustomerRefs, error)
	CustomerExists(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (bool, error)
	CancelSubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, canceledAt time.Time) error
}
