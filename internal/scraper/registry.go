package scraper

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the statically registered sources. Lookup is by retailer
// name; duplicate names are a misconfiguration, not an error, and the first
// match wins.
type Registry struct {
	sources []Source
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger, sources ...Source) *Registry {
	return &Registry{sources: sources, logger: logger}
}

// All returns every registered source in registration order.
func (r *Registry) All() []Source {
	return append([]Source(nil), r.sources...)
}

// ByName returns the source with the given retailer name, case-insensitive,
// or nil.
func (r *Registry) ByName(name string) Source {
	for _, src := range r.sources {
		if strings.EqualFold(src.Name(), name) {
			return src
		}
	}
	return nil
}

// Healthy probes every source concurrently and returns those that pass. A
// failing probe excludes only that source and is logged as a warning.
func (r *Registry) Healthy(ctx context.Context) []Source {
	results := make([]bool, len(r.sources))
	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = src.HealthCheck(ctx)
		}(i, src)
	}
	wg.Wait()

	healthy := make([]Source, 0, len(r.sources))
	for i, src := range r.sources {
		if results[i] {
			healthy = append(healthy, src)
		} else {
			r.logger.Warn("health check failed", zap.String("source", src.Name()))
		}
	}
	return healthy
}
