package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orbit/internal/catalog/domain"
	"github.com/smallbiznis/orbit/internal/catalog/repository"
	"github.com/smallbiznis/orbit/internal/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}, &domain.Price{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repository.Provide(),
	})
	return svc.(*Service), fakeClock
}

func TestCreateProductWithPrices(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)

	product, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name: "Pro Plan",
		Prices: []domain.CreatePriceRequest{
			{Currency: "usd", Amount: decimal.NewFromInt(49), Interval: domain.IntervalMonth},
			{Currency: "usd", Amount: decimal.NewFromInt(490), Interval: domain.IntervalYear},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, product.ID)
	require.Len(t, product.Prices, 2)
	require.Equal(t, "USD", product.Prices[0].Currency)
	require.Equal(t, 1, product.Prices[0].IntervalCount)

	fetched, err := svc.GetByID(context.Background(), product.ID.String())
	require.NoError(t, err)
	require.Len(t, fetched.Prices, 2)
}

func TestCreateProductValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateProductRequest{Name: ""})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateProductRequest{Name: "No Prices"})
	require.ErrorIs(t, err, domain.ErrInvalidPrices)

	_, err = svc.Create(ctx, domain.CreateProductRequest{
		Name: "Negative",
		Prices: []domain.CreatePriceRequest{
			{Currency: "USD", Amount: decimal.NewFromInt(-5), Interval: domain.IntervalMonth},
		},
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Create(ctx, domain.CreateProductRequest{
		Name: "Bad Interval",
		Prices: []domain.CreatePriceRequest{
			{Currency: "USD", Amount: decimal.NewFromInt(5), Interval: "week"},
		},
	})
	require.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	svc, fakeClock := newTestService(t, db)
	ctx := context.Background()

	names := []string{"Basic", "Standard", "Premium"}
	for _, name := range names {
		_, err := svc.Create(ctx, domain.CreateProductRequest{
			Name: name,
			Prices: []domain.CreatePriceRequest{
				{Currency: "USD", Amount: decimal.NewFromInt(10), Interval: domain.IntervalMonth},
			},
		})
		require.NoError(t, err)
		fakeClock.Advance(time.Second)
	}

	products, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	for i, name := range names {
		require.Equal(t, name, products[i].Name)
	}
}

func TestResolvePrice(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateProductRequest{
		Name: "Pro Plan",
		Prices: []domain.CreatePriceRequest{
			{Currency: "USD", Amount: decimal.RequireFromString("19.99"), Interval: domain.IntervalMonth},
		},
	})
	require.NoError(t, err)

	price, err := svc.ResolvePrice(ctx, product.ID.String(), product.Prices[0].ID.String())
	require.NoError(t, err)
	require.True(t, price.Amount.Equal(decimal.RequireFromString("19.99")))

	other, err := svc.Create(ctx, domain.CreateProductRequest{
		Name: "Other",
		Prices: []domain.CreatePriceRequest{
			{Currency: "USD", Amount: decimal.NewFromInt(5), Interval: domain.IntervalMonth},
		},
	})
	require.NoError(t, err)

	// Price id belongs to a different product.
	_, err = svc.ResolvePrice(ctx, product.ID.String(), other.Prices[0].ID.String())
	require.ErrorIs(t, err, domain.ErrPriceNotFound)

	_, err = svc.ResolvePrice(ctx, "9999999999999", product.Prices[0].ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNextPeriodEndCalendarArithmetic(t *testing.T) {
	from := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	monthly := domain.Price{Interval: domain.IntervalMonth, IntervalCount: 1}
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), monthly.NextPeriodEnd(from))

	quarterly := domain.Price{Interval: domain.IntervalMonth, IntervalCount: 3}
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), quarterly.NextPeriodEnd(from))

	yearly := domain.Price{Interval: domain.IntervalYear, IntervalCount: 1}
	require.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), yearly.NextPeriodEnd(from))
}
