// Package scheduler drives the recurring billing sweep and the daily
// notification batch.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orbit/internal/clock"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/orbit/internal/notification/domain"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/orbit/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
	NotificationSvc notificationdomain.Service
	Metrics         *metrics.BillingMetrics
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	subscriptionSvc subscriptiondomain.Service
	invoiceSvc      invoicedomain.Service
	notificationSvc notificationdomain.Service
	metrics         *metrics.BillingMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.SubscriptionSvc == nil || p.InvoiceSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		invoiceSvc:      p.InvoiceSvc,
		notificationSvc: p.NotificationSvc,
		metrics:         p.Metrics,
	}, nil
}

// RunBillingSweep walks every due subscription once. Auto-renewing ones get
// a fresh invoice and a new period; non-renewing ones are retired. The sweep
// never processes payment and a failing subscription never aborts the rest.
func (s *Scheduler) RunBillingSweep(ctx context.Context, now time.Time) error {
	due, err := s.subscriptionSvc.ListDue(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	generated := 0
	retired := 0
	for _, sub := range due {
		if !subscriptiondomain.IsDue(sub, now) {
			continue
		}

		if sub.AutoRenew {
			if _, err := s.invoiceSvc.Generate(ctx, sub.ID.String()); err != nil {
				errs = append(errs, err)
				continue
			}
			generated++
		}

		result, err := s.subscriptionSvc.AdvancePeriod(ctx, sub.ID.String())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if result.Canceled {
			retired++
		}
	}

	s.log.Info("billing sweep finished",
		zap.Int("due", len(due)),
		zap.Int("invoices_generated", generated),
		zap.Int("retired", retired),
		zap.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}

// RunOnce executes one sweep tick with the configured job timeout.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	err := s.RunBillingSweep(ctx, s.clock.Now())
	s.metrics.ObserveSweep(time.Since(start), err)
	return err
}

// RunNotificationBatch triggers the daily invoice notice emails.
func (s *Scheduler) RunNotificationBatch(parent context.Context) {
	if s.notificationSvc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if err := s.notificationSvc.RunDailyBatch(ctx, s.clock.Now()); err != nil {
		s.log.Warn("notification batch failed", zap.Error(err))
	}
}

// RunForever ticks the sweep until the context is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
