package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/orbit/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RunScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.SweepInterval,
	}
}

// RunScheduler starts the sweep loop and the daily notification cron.
func RunScheduler(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, sched *Scheduler) error {
	runner := cron.New()
	_, err := runner.AddFunc(cfg.NotificationSchedule, func() {
		sched.RunNotificationBatch(context.Background())
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)
			runner.Start()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					<-runner.Stop().Done()
					return nil
				},
			})

			log.Info("scheduler started",
				zap.Duration("sweep_interval", sched.cfg.RunInterval),
				zap.String("notification_schedule", cfg.NotificationSchedule),
			)
			return nil
		},
	})

	return nil
}
