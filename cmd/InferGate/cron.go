package main

import (
	"context"
	"fmt"
	"time"

	"InferGate/internal/biz"
	"InferGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// startHealthCheckCron runs the provider health evaluation on a fixed
// cadence so verdicts and alerts stay fresh between requests. The
// returned cleanup stops the scheduler.
func startHealthCheckCron(health *biz.HealthUseCase, c *conf.Health, logger log.Logger) (*cron.Cron, func(), error) {
	helper := log.NewHelper(logger)

	interval := 60
	if c != nil && c.CheckIntervalSeconds > 0 {
		interval = c.CheckIntervalSeconds
	}

	cr := cron.New(cron.WithSeconds())

	_, err := cr.AddFunc(fmt.Sprintf("@every %ds", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := health.CheckHealth(ctx); err != nil {
			helper.Errorw("scheduled health check failed", "type", "health", "error", err)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register health check cron job: %w", err)
	}

	cr.Start()
	helper.Infow("health check cron started", "type", "health", "interval_seconds", interval)

	return cr, func() { cr.Stop() }, nil
}
