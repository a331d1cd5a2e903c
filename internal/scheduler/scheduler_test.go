package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/orbit/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/orbit/internal/catalog/service"
	"github.com/smallbiznis/orbit/internal/clock"
	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/orbit/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/orbit/internal/invoice/service"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	"github.com/smallbiznis/orbit/internal/payment/adapters/sandbox"
	subscriptiondomain "github.com/smallbiznis/orbit/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/orbit/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/orbit/internal/subscription/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sweepEnv struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	sched     *Scheduler
	subSvc    subscriptiondomain.Service
	customer  customerdomain.Customer
	productID string
	priceID   string
}

func setupSweep(t *testing.T) *sweepEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.Product{},
		&catalogdomain.Price{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	billingMetrics := metrics.NewBillingMetricsWith(prometheus.NewRegistry())

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  catalogrepository.Provide(),
	})
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Repo:    invoicerepository.Provide(),
		Gateway: sandbox.NewGateway(),
		Metrics: billingMetrics,
	})
	subSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Repo:       subscriptionrepository.Provide(),
		CatalogSvc: catalogSvc,
		InvoiceSvc: invoiceSvc,
	})

	sched, err := New(Params{
		Log:             log,
		Clock:           fakeClock,
		SubscriptionSvc: subSvc,
		InvoiceSvc:      invoiceSvc,
		Metrics:         billingMetrics,
	})
	require.NoError(t, err)

	now := fakeClock.Now()
	customer := customerdomain.Customer{
		ID:               node.Generate(),
		Name:             "Ada Lovelace",
		Email:            "ada@example.com",
		BillingDay:       1,
		BillingFrequency: customerdomain.FrequencyMonthly,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&customer).Error)

	product, err := catalogSvc.Create(context.Background(), catalogdomain.CreateProductRequest{
		Name: "Pro Plan",
		Prices: []catalogdomain.CreatePriceRequest{
			{Currency: "USD", Amount: decimal.NewFromInt(49), Interval: catalogdomain.IntervalMonth},
		},
	})
	require.NoError(t, err)

	return &sweepEnv{
		db:        db,
		clock:     fakeClock,
		sched:     sched,
		subSvc:    subSvc,
		customer:  customer,
		productID: product.ID.String(),
		priceID:   product.Prices[0].ID.String(),
	}
}

func (e *sweepEnv) createSubscription(t *testing.T, autoRenew bool) subscriptiondomain.Subscription {
	t.Helper()
	resp, err := e.subSvc.Create(context.Background(), subscriptiondomain.CreateSubscriptionRequest{
		CustomerID: e.customer.ID.String(),
		ProductID:  e.productID,
		PriceID:    e.priceID,
		AutoRenew:  &autoRenew,
	})
	require.NoError(t, err)
	return resp.Subscription
}

func (e *sweepEnv) invoiceCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	return count
}

func TestSweepRenewsDueSubscription(t *testing.T) {
	env := setupSweep(t)
	ctx := context.Background()

	sub := env.createSubscription(t, true)
	require.EqualValues(t, 1, env.invoiceCount(t))

	env.clock.Advance(32 * 24 * time.Hour)
	require.NoError(t, env.sched.RunBillingSweep(ctx, env.clock.Now()))

	require.EqualValues(t, 2, env.invoiceCount(t))

	fetched, err := env.subSvc.GetByID(ctx, sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.StatusActive, fetched.Status)
	require.True(t, fetched.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd.AddDate(0, 1, 0)))
}

func TestSweepIsIdempotentForSameInstant(t *testing.T) {
	env := setupSweep(t)
	ctx := context.Background()

	env.createSubscription(t, true)
	env.clock.Advance(32 * 24 * time.Hour)
	now := env.clock.Now()

	require.NoError(t, env.sched.RunBillingSweep(ctx, now))
	countAfterFirst := env.invoiceCount(t)

	require.NoError(t, env.sched.RunBillingSweep(ctx, now))
	require.Equal(t, countAfterFirst, env.invoiceCount(t))
}

func TestSweepRetiresNonRenewingSubscription(t *testing.T) {
	env := setupSweep(t)
	ctx := context.Background()

	sub := env.createSubscription(t, false)
	require.EqualValues(t, 1, env.invoiceCount(t))

	env.clock.Advance(32 * 24 * time.Hour)
	require.NoError(t, env.sched.RunBillingSweep(ctx, env.clock.Now()))

	// Retired without a farewell invoice.
	require.EqualValues(t, 1, env.invoiceCount(t))

	fetched, err := env.subSvc.GetByID(ctx, sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.StatusCanceled, fetched.Status)
}

func TestSweepSkipsSubscriptionsNotYetDue(t *testing.T) {
	env := setupSweep(t)
	ctx := context.Background()

	env.createSubscription(t, true)
	env.clock.Advance(24 * time.Hour)

	require.NoError(t, env.sched.RunBillingSweep(ctx, env.clock.Now()))
	require.EqualValues(t, 1, env.invoiceCount(t))
}

func TestRunOnceObservesMetrics(t *testing.T) {
	env := setupSweep(t)

	env.createSubscription(t, true)
	env.clock.Advance(32 * 24 * time.Hour)

	require.NoError(t, env.sched.RunOnce(context.Background()))
	require.EqualValues(t, 2, env.invoiceCount(t))
}
