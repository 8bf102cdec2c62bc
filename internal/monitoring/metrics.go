package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Methods are safe
// on a nil receiver so tests can pass nil instead of touching the global
// registry.
type Metrics struct {
	ScrapesTotal       *prometheus.CounterVec
	ScrapeDuration     *prometheus.HistogramVec
	ProductsInserted   *prometheus.CounterVec
	PriceSamplesTotal  prometheus.Counter
	FetchRetriesTotal  prometheus.Counter
	BreakerTransitions *prometheus.CounterVec
	CacheEventsTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		ScrapesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_scrapes_total",
			Help: "The total number of per-source scrape executions",
		}, []string{"source", "status"}), // status: success, failure
		ScrapeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricewatch_scrape_duration_seconds",
			Help:    "Duration of per-source scrape executions",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		}, []string{"source"}),
		ProductsInserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_products_inserted_total",
			Help: "The total number of newly persisted products",
		}, []string{"source"}),
		PriceSamplesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_price_samples_total",
			Help: "The total number of recorded price samples",
		}),
		FetchRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_fetch_retries_total",
			Help: "The total number of retried outbound requests",
		}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_breaker_transitions_total",
			Help: "Circuit breaker state transitions per host",
		}, []string{"host", "state"}),
		CacheEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_cache_events_total",
			Help: "Result cache outcomes",
		}, []string{"outcome"}), // hit, miss, stale, empty
	}
}

func (m *Metrics) ObserveScrape(source string, elapsed time.Duration, ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.ScrapesTotal.WithLabelValues(source, status).Inc()
	m.ScrapeDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) AddInserted(source string, n int) {
	if m == nil {
		return
	}
	m.ProductsInserted.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) IncPriceSample() {
	if m == nil {
		return
	}
	m.PriceSamplesTotal.Inc()
}

func (m *Metrics) IncFetchRetry() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}

func (m *Metrics) IncBreaker(host, state string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(host, state).Inc()
}

func (m *Metrics) IncCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheEventsTotal.WithLabelValues(outcome).Inc()
}
