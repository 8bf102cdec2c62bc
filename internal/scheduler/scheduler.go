// Package scheduler drives recurring ingestion passes. It owns only the
// cadence; retry-on-failure stays with whoever supervises the process.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/scraper"
)

// Run blocks until ctx is cancelled, kicking off a popular-terms ingestion
// pass on every tick. The first pass runs immediately.
func Run(ctx context.Context, svc *scraper.Service, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("scheduler started", zap.Duration("interval", interval))
	runOnce(ctx, svc, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			runOnce(ctx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scraper.Service, logger *zap.Logger) {
	start := time.Now()
	if err := svc.RunPopularTerms(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("scheduled ingestion pass failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	logger.Info("scheduled ingestion pass complete", zap.Duration("elapsed", time.Since(start)))
}
