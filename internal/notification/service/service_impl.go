package service

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orbit/internal/config"
	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	"github.com/smallbiznis/orbit/internal/notification/domain"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	"github.com/smallbiznis/orbit/internal/providers/email"
	"github.com/smallbiznis/orbit/pkg/db/option"
	"github.com/smallbiznis/orbit/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Invoice notices show a payment window rather than an exact timestamp.
const dueDays = 30

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Email   email.Provider
	Metrics *metrics.BillingMetrics
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	email        email.Provider
	metrics      *metrics.BillingMetrics
	companyName  string
	customerRepo repository.Repository[customerdomain.Customer]
	invoiceRepo  repository.Repository[invoicedomain.Invoice]
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("notification.service"),
		email:        p.Email,
		metrics:      p.Metrics,
		companyName:  p.Config.Email.CompanyName,
		customerRepo: repository.ProvideStore[customerdomain.Customer](p.DB),
		invoiceRepo:  repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

func (s *Service) RunDailyBatch(ctx context.Context, now time.Time) error {
	customers, err := s.customerRepo.Find(ctx, &customerdomain.Customer{})
	if err != nil {
		return err
	}

	var errs []error
	sent := 0
	for _, customer := range customers {
		if customer == nil {
			continue
		}
		if !domain.MatchesFrequency(customer.BillingDay, customer.BillingFrequency, now) {
			continue
		}

		if err := s.notify(ctx, customer, now); err != nil {
			s.log.Warn("invoice notice failed",
				zap.String("customer_id", customer.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		sent++
	}

	s.log.Info("invoice notice batch finished",
		zap.Int("sent", sent),
		zap.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}

func (s *Service) notify(ctx context.Context, customer *customerdomain.Customer, now time.Time) error {
	invoice, err := s.latestInvoice(ctx, customer)
	if err != nil {
		return err
	}
	if invoice == nil {
		return nil
	}

	err = s.email.SendTemplate(ctx, []string{customer.Email}, "invoice_notice", map[string]interface{}{
		"subject":       "Your invoice from " + s.companyName,
		"company_name":  s.companyName,
		"customer_name": customer.Name,
		"invoice_id":    invoice.ID.String(),
		"amount":        invoice.Amount.String(),
		"currency":      invoice.Currency,
		"due_date":      invoice.CreatedAt.AddDate(0, 0, dueDays).Format("January 2, 2006"),
	})
	if err != nil {
		return err
	}

	s.metrics.NotificationsSent.Inc()
	return nil
}

func (s *Service) latestInvoice(ctx context.Context, customer *customerdomain.Customer) (*invoicedomain.Invoice, error) {
	return s.invoiceRepo.FindOne(ctx,
		&invoicedomain.Invoice{CustomerID: customer.ID},
		option.WithOrderBy("created_at desc, id desc"),
	)
}
