package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orbit/internal/clock"
	"github.com/smallbiznis/orbit/internal/invoice/domain"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/orbit/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Gateway paymentdomain.Gateway
	Metrics *metrics.BillingMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	gateway paymentdomain.Gateway
	metrics *metrics.BillingMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	customerID, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.Invoice{}, err
	}

	if req.Amount.IsNegative() {
		return domain.Invoice{}, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return domain.Invoice{}, domain.ErrInvalidCurrency
	}

	exists, err := s.repo.CustomerExists(ctx, s.db, customerID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !exists {
		return domain.Invoice{}, domain.ErrCustomerInvalid
	}

	var subscriptionID *snowflake.ID
	if req.SubscriptionID != nil && strings.TrimSpace(*req.SubscriptionID) != "" {
		parsed, err := s.parseID(*req.SubscriptionID)
		if err != nil {
			return domain.Invoice{}, err
		}
		subscriptionID = &parsed
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:             s.genID.Generate(),
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         domain.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.InvoicesGenerated.Inc()
	return invoice, nil
}

func (s *Service) Generate(ctx context.Context, subscriptionID string) (domain.Invoice, error) {
	id, err := s.parseID(subscriptionID)
	if err != nil {
		return domain.Invoice{}, err
	}

	billing, err := s.repo.FindSubscriptionBilling(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if billing == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	return s.GenerateInTx(ctx, s.db, domain.GenerateParams{
		SubscriptionID: billing.SubscriptionID,
		CustomerID:     billing.CustomerID,
		Amount:         billing.Amount,
		Currency:       billing.Currency,
	})
}

func (s *Service) GenerateInTx(ctx context.Context, tx *gorm.DB, params domain.GenerateParams) (domain.Invoice, error) {
	now := s.clock.Now()
	subscriptionID := params.SubscriptionID
	invoice := domain.Invoice{
		ID:             s.genID.Generate(),
		CustomerID:     params.CustomerID,
		SubscriptionID: &subscriptionID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Status:         domain.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.InvoicesGenerated.Inc()
	s.log.Info("invoice generated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("amount", invoice.Amount.String()),
	)

	return invoice, nil
}

// Process collects payment for an open invoice. The gateway call happens
// outside any row lock; the terminal state flip re-checks the row under
// FOR UPDATE.
func (s *Service) Process(ctx context.Context, invoiceID string) (bool, error) {
	id, err := s.parseID(invoiceID)
	if err != nil {
		return false, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if invoice == nil {
		return false, domain.ErrNotFound
	}
	if invoice.Status != domain.StatusOpen {
		return false, nil
	}

	refs, err := s.repo.FindCustomerRefs(ctx, s.db, invoice.CustomerID)
	if err != nil {
		return false, err
	}
	if refs == nil {
		return false, domain.ErrCustomerInvalid
	}

	s.metrics.ChargesAttempted.Inc()
	result, err := s.gateway.Charge(ctx, paymentdomain.ChargeRequest{
		CustomerRef:      refs.ProviderCustomerID,
		PaymentMethodRef: refs.PaymentMethodRef,
		Amount:           invoice.Amount,
		Currency:         invoice.Currency,
		Metadata: map[string]string{
			"invoice_id": invoice.ID.String(),
		},
	})
	if err != nil {
		s.metrics.ChargesFailed.Inc()
		s.log.Error("charge failed, invoice stays open",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return false, nil
	}
	if !result.Succeeded {
		s.metrics.ChargesFailed.Inc()
		s.log.Warn("charge declined, invoice stays open",
			zap.String("invoice_id", invoice.ID.String()),
		)
		return false, nil
	}

	paid := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			// Charged money for an invoice that vanished mid-flight.
			return domain.ErrConsistency
		}

		switch current.Status {
		case domain.StatusPaid:
			// A concurrent processor won; the customer was charged once by
			// that path, so report success without a second update.
			paid = true
			return nil
		case domain.StatusOpen:
			if err := s.repo.MarkPaid(ctx, tx, id, result.Reference, s.clock.Now()); err != nil {
				return err
			}
			paid = true
			return nil
		default:
			return domain.ErrConsistency
		}
	})
	if err != nil {
		return false, err
	}

	s.log.Info("invoice paid",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("payment_ref", result.Reference),
	)

	return paid, nil
}

// Delete removes an invoice. Paid invoices are refunded first; a refund
// failure aborts without touching local state. Like Process, the gateway
// call happens outside any row lock and the delete re-checks the row under
// FOR UPDATE. Deleting a subscription invoice force-cancels the
// subscription in the same transaction.
func (s *Service) Delete(ctx context.Context, invoiceID string) (bool, error) {
	id, err := s.parseID(invoiceID)
	if err != nil {
		return false, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if invoice == nil {
		return false, domain.ErrNotFound
	}

	refunded := false
	if invoice.Status == domain.StatusPaid {
		s.metrics.RefundsAttempted.Inc()
		if err := s.gateway.Refund(ctx, invoice.PaymentRef); err != nil {
			s.metrics.RefundsFailed.Inc()
			s.log.Error("refund failed, invoice kept",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			return false, nil
		}
		refunded = true
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			if refunded {
				// Refunded an invoice a competing delete already removed.
				return domain.ErrConsistency
			}
			return domain.ErrNotFound
		}
		if current.Status != invoice.Status || current.PaymentRef != invoice.PaymentRef {
			// The row changed under us; deleting now would skip or double a
			// refund.
			return domain.ErrConsistency
		}

		if err := s.repo.DeleteByID(ctx, tx, id); err != nil {
			return err
		}
		if invoice.SubscriptionID != nil {
			return s.repo.CancelSubscription(ctx, tx, *invoice.SubscriptionID, s.clock.Now())
		}
		return nil
	})
	if err != nil {
		if refunded {
			s.log.Error("refund succeeded but local delete failed",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			return false, domain.ErrConsistency
		}
		return false, err
	}

	s.log.Info("invoice deleted",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Bool("refunded", refunded),
	)

	return true, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := s.parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	id, err := s.parseID(customerID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.CustomerExists(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrCustomerInvalid
	}

	items, err := s.repo.ListByCustomer(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
