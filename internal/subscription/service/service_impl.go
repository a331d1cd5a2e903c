package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
	"github.com/smallbiznis/orbit/internal/clock"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	"github.com/smallbiznis/orbit/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	CatalogSvc catalogdomain.Service
	InvoiceSvc invoicedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	catalogsvc catalogdomain.Service
	invoicesvc invoicedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("subscription.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		catalogsvc: p.CatalogSvc,
		invoicesvc: p.InvoiceSvc,
	}
}

// Create activates a subscription and generates its first invoice in the
// same transaction, so neither exists without the other.
func (s *Service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (domain.CreateSubscriptionResponse, error) {
	customerID, err := s.parseID(req.CustomerID, domain.ErrInvalidCustomer)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	exists, err := s.repo.CustomerExists(ctx, s.db, customerID)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}
	if !exists {
		return domain.CreateSubscriptionResponse{}, domain.ErrInvalidCustomer
	}

	price, err := s.catalogsvc.ResolvePrice(ctx, req.ProductID, req.PriceID)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}

	now := s.clock.Now()
	subscription := domain.Subscription{
		ID:               s.genID.Generate(),
		CustomerID:       customerID,
		ProductID:        price.ProductID,
		PriceID:          price.ID,
		Status:           domain.StatusActive,
		AutoRenew:        autoRenew,
		CurrentPeriodEnd: price.NextPeriodEnd(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var firstInvoice invoicedomain.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			return err
		}

		invoice, err := s.invoicesvc.GenerateInTx(ctx, tx, invoicedomain.GenerateParams{
			SubscriptionID: subscription.ID,
			CustomerID:     subscription.CustomerID,
			Amount:         price.Amount,
			Currency:       price.Currency,
		})
		if err != nil {
			return err
		}
		firstInvoice = invoice
		return nil
	})
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("customer_id", subscription.CustomerID.String()),
		zap.Time("current_period_end", subscription.CurrentPeriodEnd),
	)

	return domain.CreateSubscriptionResponse{
		Subscription: subscription,
		Invoice:      firstInvoice,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Subscription, error) {
	subscriptionID, err := s.parseID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.Subscription{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if item == nil {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return *item, nil
}

// Cancel ends a subscription. Immediate cancellation retires it now;
// otherwise it only switches off auto-renew and the subscription runs out
// at the end of the paid period.
func (s *Service) Cancel(ctx context.Context, req domain.CancelSubscriptionRequest) (domain.Subscription, error) {
	subscriptionID, err := s.parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return domain.Subscription{}, err
	}

	var updated domain.Subscription
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Status != domain.StatusActive {
			return domain.ErrNotActive
		}

		now := s.clock.Now()
		if req.Immediate {
			if err := s.repo.MarkCanceled(ctx, tx, subscriptionID, now); err != nil {
				return err
			}
			current.Status = domain.StatusCanceled
			current.AutoRenew = false
			current.CanceledAt = &now
		} else {
			if err := s.repo.DisableAutoRenew(ctx, tx, subscriptionID, now); err != nil {
				return err
			}
			current.AutoRenew = false
		}
		current.UpdatedAt = now
		updated = *current
		return nil
	})
	if err != nil {
		return domain.Subscription{}, err
	}

	s.log.Info("subscription cancel requested",
		zap.String("subscription_id", updated.ID.String()),
		zap.Bool("immediate", req.Immediate),
	)

	return updated, nil
}

func (s *Service) ListDue(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	items, err := s.repo.ListDue(ctx, s.db, now)
	if err != nil {
		return nil, err
	}

	subscriptions := make([]domain.Subscription, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		subscriptions = append(subscriptions, *item)
	}
	return subscriptions, nil
}

// AdvancePeriod moves a due subscription forward. With auto-renew on, the
// period end advances one price interval; with it off, the subscription is
// retired instead and the caller skips invoice generation.
func (s *Service) AdvancePeriod(ctx context.Context, id string) (domain.AdvanceResult, error) {
	subscriptionID, err := s.parseID(id, domain.ErrInvalidID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	if subscription == nil {
		return domain.AdvanceResult{}, domain.ErrNotFound
	}

	price, err := s.catalogsvc.ResolvePrice(ctx, subscription.ProductID.String(), subscription.PriceID.String())
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	result := domain.AdvanceResult{SubscriptionID: id}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Status != domain.StatusActive {
			return domain.ErrNotActive
		}

		now := s.clock.Now()
		if !current.AutoRenew {
			if err := s.repo.MarkCanceled(ctx, tx, subscriptionID, now); err != nil {
				return err
			}
			result.Canceled = true
			return nil
		}

		next := price.NextPeriodEnd(current.CurrentPeriodEnd)
		if err := s.repo.UpdatePeriodEnd(ctx, tx, subscriptionID, next, now); err != nil {
			return err
		}
		result.NextPeriodEnd = next
		return nil
	})
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	return result, nil
}

func (s *Service) parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
