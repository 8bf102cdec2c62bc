package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/monitoring"
)

// popularTerms drive the convenience multi-term run used by the scheduler.
var popularTerms = []string{"sandals", "slides", "thongs", "flip flops"}

// UnitOfWorkFactory opens a scoped persistence session for one source's work.
// The release func must always be called once the work is done.
type UnitOfWorkFactory func(ctx context.Context) (gw ProductGateway, release func(), err error)

// Options tune one orchestrator instance.
type Options struct {
	MaxItems        int           // batch limit per source for full runs
	HealthyMaxItems int           // batch limit for healthy-only runs
	SourceDelay     time.Duration // courtesy pause between sources and terms
}

// Service is the ingestion orchestrator: it runs every registered source for
// a search term, isolating failures so one source never aborts the batch.
// Sources run sequentially with a courtesy delay between them.
type Service struct {
	registry *Registry
	monitor  *Monitor
	uow      UnitOfWorkFactory
	opts     Options
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func NewService(registry *Registry, monitor *Monitor, uow UnitOfWorkFactory, opts Options, m *monitoring.Metrics, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		monitor:  monitor,
		uow:      uow,
		opts:     opts,
		metrics:  m,
		logger:   logger,
	}
}

// RunAllSources scrapes every registered source for the term and reports
// per-source counts. Failed sources are reported as zero.
func (s *Service) RunAllSources(ctx context.Context, term string) (*domain.RunReport, error) {
	return s.run(ctx, s.registry.All(), term, s.opts.MaxItems)
}

// RunHealthySources is the stricter entry point: only sources passing their
// health probe are attempted, with a smaller batch limit.
func (s *Service) RunHealthySources(ctx context.Context, term string) (*domain.RunReport, error) {
	healthy := s.registry.Healthy(ctx)
	s.logger.Info("healthy sources", zap.Int("count", len(healthy)))
	return s.run(ctx, healthy, term, s.opts.HealthyMaxItems)
}

// RunPopularTerms runs a full ingestion pass for each popular search term,
// with the same courtesy delay between terms.
func (s *Service) RunPopularTerms(ctx context.Context) error {
	for _, term := range popularTerms {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.RunAllSources(ctx, term); err != nil {
			return err
		}
		s.pause(ctx)
	}
	return nil
}

func (s *Service) run(ctx context.Context, sources []Source, term string, maxItems int) (*domain.RunReport, error) {
	report := &domain.RunReport{
		SearchTerm: term,
		Counts:     make(map[string]int, len(sources)),
		Status:     domain.RunCompleted,
		StartedAt:  time.Now().UTC(),
	}
	s.logger.Info("starting multi-source scrape",
		zap.String("term", term),
		zap.Int("sources", len(sources)))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		count, err := s.scrapeOne(ctx, src, term, maxItems)
		if err != nil {
			s.logger.Error("source failed, continuing batch",
				zap.String("source", src.Name()),
				zap.String("term", term),
				zap.Error(err))
			report.Counts[src.Name()] = 0
			report.Status = domain.RunPartiallyFailed
		} else {
			report.Counts[src.Name()] = count
			report.Total += count
			s.metrics.AddInserted(src.Name(), count)
		}

		s.pause(ctx)
	}

	report.ElapsedSeconds = time.Since(report.StartedAt).Seconds()
	s.logger.Info("multi-source scrape complete",
		zap.String("term", term),
		zap.Int("total_new_items", report.Total),
		zap.Any("counts", report.Counts),
		zap.String("status", report.Status))
	return report, nil
}

func (s *Service) scrapeOne(ctx context.Context, src Source, term string, maxItems int) (int, error) {
	gw, release, err := s.uow(ctx)
	if err != nil {
		return 0, fmt.Errorf("open unit of work: %w", err)
	}
	defer release()

	return s.monitor.Run(src.Name(), func() (int, error) {
		return src.Scrape(ctx, gw, term, maxItems)
	})
}

// pause waits the courtesy delay, cut short if the context ends.
func (s *Service) pause(ctx context.Context) {
	if s.opts.SourceDelay <= 0 {
		return
	}
	select {
	case <-time.After(s.opts.SourceDelay):
	case <-ctx.Done():
	}
}
