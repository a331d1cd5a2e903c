package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orbit/internal/catalog/domain"
	"github.com/smallbiznis/orbit/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, domain.ErrInvalidName
	}
	if len(req.Prices) == 0 {
		return domain.Product{}, domain.ErrInvalidPrices
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description != "" {
			product.Description = &description
		}
	}
	if req.Metadata != nil {
		product.Metadata = datatypes.JSONMap(req.Metadata)
	}

	for _, priceReq := range req.Prices {
		currency := strings.ToUpper(strings.TrimSpace(priceReq.Currency))
		if currency == "" {
			return domain.Product{}, domain.ErrInvalidCurrency
		}
		if priceReq.Amount.IsNegative() {
			return domain.Product{}, domain.ErrInvalidAmount
		}

		interval := priceReq.Interval
		if interval == "" {
			interval = domain.IntervalMonth
		}
		if interval != domain.IntervalMonth && interval != domain.IntervalYear {
			return domain.Product{}, domain.ErrInvalidInterval
		}

		count := priceReq.IntervalCount
		if count <= 0 {
			count = 1
		}

		product.Prices = append(product.Prices, domain.Price{
			ID:            s.genID.Generate(),
			ProductID:     product.ID,
			Currency:      currency,
			Amount:        priceReq.Amount,
			Interval:      interval,
			IntervalCount: count,
			CreatedAt:     now,
		})
	}

	if err := s.repo.Insert(ctx, s.db, &product); err != nil {
		return domain.Product{}, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.Int("prices", len(product.Prices)),
	)

	return product, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		products = append(products, *item)
	}
	return products, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Product, error) {
	productID, err := s.parseID(id)
	if err != nil {
		return domain.Product{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if item == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ResolvePrice(ctx context.Context, productID, priceID string) (domain.Price, error) {
	parsedProductID, err := s.parseID(productID)
	if err != nil {
		return domain.Price{}, err
	}
	parsedPriceID, err := s.parseID(priceID)
	if err != nil {
		return domain.Price{}, err
	}

	product, err := s.repo.FindByID(ctx, s.db, parsedProductID)
	if err != nil {
		return domain.Price{}, err
	}
	if product == nil {
		return domain.Price{}, domain.ErrNotFound
	}

	price, err := s.repo.FindPrice(ctx, s.db, parsedProductID, parsedPriceID)
	if err != nil {
		return domain.Price{}, err
	}
	if price == nil {
		return domain.Price{}, domain.ErrPriceNotFound
	}
	return *price, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
