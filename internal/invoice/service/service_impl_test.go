package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
	"github.com/smallbiznis/orbit/internal/clock"
	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
	"github.com/smallbiznis/orbit/internal/invoice/domain"
	"github.com/smallbiznis/orbit/internal/invoice/repository"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	"github.com/smallbiznis/orbit/internal/payment/adapters/sandbox"
	subscriptiondomain "github.com/smallbiznis/orbit/internal/subscription/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	gateway *sandbox.Gateway
	svc     domain.Service
	node    *snowflake.Node

	customer     customerdomain.Customer
	subscription subscriptiondomain.Subscription
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.Product{},
		&catalogdomain.Price{},
		&subscriptiondomain.Subscription{},
		&domain.Invoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	gateway := sandbox.NewGateway()

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fakeClock,
		Repo:    repository.Provide(),
		Gateway: gateway,
		Metrics: metrics.NewBillingMetricsWith(prometheus.NewRegistry()),
	})

	now := fakeClock.Now()
	customer := customerdomain.Customer{
		ID:                 node.Generate(),
		Name:               "Ada Lovelace",
		Email:              "ada@example.com",
		PaymentMethodRef:   "pm_test_000001",
		ProviderCustomerID: "cus_test_000001",
		BillingDay:         1,
		BillingFrequency:   customerdomain.FrequencyMonthly,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, db.Create(&customer).Error)

	product := catalogdomain.Product{
		ID:        node.Generate(),
		Name:      "Pro Plan",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&product).Error)

	price := catalogdomain.Price{
		ID:            node.Generate(),
		ProductID:     product.ID,
		Currency:      "USD",
		Amount:        decimal.NewFromInt(49),
		Interval:      catalogdomain.IntervalMonth,
		IntervalCount: 1,
		CreatedAt:     now,
	}
	require.NoError(t, db.Create(&price).Error)

	subscription := subscriptiondomain.Subscription{
		ID:               node.Generate(),
		CustomerID:       customer.ID,
		ProductID:        product.ID,
		PriceID:          price.ID,
		Status:           subscriptiondomain.StatusActive,
		AutoRenew:        true,
		CurrentPeriodEnd: now.AddDate(0, 1, 0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&subscription).Error)

	return &testEnv{
		db:           db,
		clock:        fakeClock,
		gateway:      gateway,
		svc:          svc,
		node:         node,
		customer:     customer,
		subscription: subscription,
	}
}

func TestGenerateSnapshotsPrice(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, invoice.Status)
	require.True(t, invoice.Amount.Equal(decimal.NewFromInt(49)))
	require.Equal(t, "USD", invoice.Currency)
	require.NotNil(t, invoice.SubscriptionID)
	require.Equal(t, env.subscription.ID, *invoice.SubscriptionID)

	// Generation never touches the gateway.
	require.Empty(t, env.gateway.Charges)
}

func TestGenerateUnknownSubscription(t *testing.T) {
	env := setupEnv(t)

	_, err := env.svc.Generate(context.Background(), "9999999999999")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessPaysOpenInvoice(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)
	require.Len(t, env.gateway.Charges, 1)
	require.Equal(t, "cus_test_000001", env.gateway.Charges[0].CustomerRef)

	fetched, err := env.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, fetched.Status)
	require.NotNil(t, fetched.PaidAt)
	require.NotEmpty(t, fetched.PaymentRef)
}

func TestProcessNonOpenInvoiceIsNoOp(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)

	// Second processing must not charge again.
	paid, err = env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.False(t, paid)
	require.Len(t, env.gateway.Charges, 1)
}

func TestProcessChargeFailureLeavesInvoiceOpen(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	env.gateway.FailCharge = true
	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.False(t, paid)

	fetched, err := env.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, fetched.Status)

	// Invoice stays the retry unit: a later attempt succeeds.
	env.gateway.FailCharge = false
	paid, err = env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)
}

func TestProcessUnknownInvoice(t *testing.T) {
	env := setupEnv(t)

	_, err := env.svc.Process(context.Background(), "9999999999999")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteOpenInvoiceCancelsSubscription(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	deleted, err := env.svc.Delete(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, deleted)
	require.Empty(t, env.gateway.Refunds)

	_, err = env.svc.GetByID(ctx, invoice.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)

	var sub subscriptiondomain.Subscription
	require.NoError(t, env.db.First(&sub, "id = ?", env.subscription.ID).Error)
	require.Equal(t, subscriptiondomain.StatusCanceled, sub.Status)
	require.False(t, sub.AutoRenew)
	require.NotNil(t, sub.CanceledAt)
}

func TestDeletePaidInvoiceRefundsFirst(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)

	deleted, err := env.svc.Delete(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, deleted)
	require.Len(t, env.gateway.Refunds, 1)
}

func TestDeleteAbortsWhenRefundFails(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)

	env.gateway.FailRefund = true
	deleted, err := env.svc.Delete(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.False(t, deleted)

	// Nothing changed locally.
	fetched, err := env.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, fetched.Status)

	var sub subscriptiondomain.Subscription
	require.NoError(t, env.db.First(&sub, "id = ?", env.subscription.ID).Error)
	require.Equal(t, subscriptiondomain.StatusActive, sub.Status)
}

// snapshotHookRepo runs a callback after the pre-transaction snapshot read,
// opening the window between snapshot and row lock to a competing writer.
type snapshotHookRepo struct {
	domain.Repository
	onSnapshot func()
}

func (r *snapshotHookRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := r.Repository.FindByID(ctx, db, id)
	if r.onSnapshot != nil {
		r.onSnapshot()
	}
	return invoice, err
}

func (e *testEnv) serviceWithSnapshotHook(hook func()) domain.Service {
	return New(Params{
		DB:      e.db,
		Log:     zap.NewNop(),
		GenID:   e.node,
		Clock:   e.clock,
		Repo:    &snapshotHookRepo{Repository: repository.Provide(), onSnapshot: hook},
		Gateway: e.gateway,
		Metrics: metrics.NewBillingMetricsWith(prometheus.NewRegistry()),
	})
}

func TestDeleteDetectsInvoicePaidMidFlight(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)

	// A concurrent processor pays the open invoice after Delete snapshots it.
	svc := env.serviceWithSnapshotHook(func() {
		paid, err := env.svc.Process(ctx, invoice.ID.String())
		require.NoError(t, err)
		require.True(t, paid)
	})

	deleted, err := svc.Delete(ctx, invoice.ID.String())
	require.ErrorIs(t, err, domain.ErrConsistency)
	require.False(t, deleted)

	// The paid invoice must survive; deleting it without a refund would
	// keep the customer's money.
	require.Empty(t, env.gateway.Refunds)
	fetched, err := env.svc.GetByID(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, fetched.Status)
}

func TestDeleteDetectsCompetingDelete(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
	require.NoError(t, err)
	paid, err := env.svc.Process(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, paid)

	// A competing Delete wins the whole race inside our snapshot window.
	svc := env.serviceWithSnapshotHook(func() {
		deleted, err := env.svc.Delete(ctx, invoice.ID.String())
		require.NoError(t, err)
		require.True(t, deleted)
	})

	deleted, err := svc.Delete(ctx, invoice.ID.String())
	require.ErrorIs(t, err, domain.ErrConsistency)
	require.False(t, deleted)

	// Both attempts refunded before the lock; the loser must surface the
	// inconsistency instead of reporting a clean delete.
	require.Len(t, env.gateway.Refunds, 2)
}

func TestAdHocInvoiceWithoutSubscription(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     decimal.RequireFromString("12.50"),
		Currency:   "usd",
	})
	require.NoError(t, err)
	require.Nil(t, invoice.SubscriptionID)
	require.Equal(t, "USD", invoice.Currency)

	// Deleting it cannot touch any subscription.
	deleted, err := env.svc.Delete(ctx, invoice.ID.String())
	require.NoError(t, err)
	require.True(t, deleted)

	var sub subscriptiondomain.Subscription
	require.NoError(t, env.db.First(&sub, "id = ?", env.subscription.ID).Error)
	require.Equal(t, subscriptiondomain.StatusActive, sub.Status)
}

func TestListByCustomerNewestFirst(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		invoice, err := env.svc.Generate(ctx, env.subscription.ID.String())
		require.NoError(t, err)
		ids = append(ids, invoice.ID)
		env.clock.Advance(time.Minute)
	}

	invoices, err := env.svc.ListByCustomer(ctx, env.customer.ID.String())
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	require.Equal(t, ids[2], invoices[0].ID)
	require.Equal(t, ids[0], invoices[2].ID)

	_, err = env.svc.ListByCustomer(ctx, "9999999999999")
	require.ErrorIs(t, err, domain.ErrCustomerInvalid)
}

func TestCreateInvoiceValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     decimal.NewFromInt(-1),
		Currency:   "USD",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: "9999999999999",
		Amount:     decimal.NewFromInt(1),
		Currency:   "USD",
	})
	require.ErrorIs(t, err, domain.ErrCustomerInvalid)
}
