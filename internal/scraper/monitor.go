package scraper

import (
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/monitoring"
)

// Alerter is the failure side-channel invoked when a monitored execution
// fails. Implementations are best-effort and must not fail back into the
// caller.
type Alerter interface {
	Alert(source string, err error)
}

// LogAlerter is the default alert sink. A real deployment would fan out to
// email or a pager here.
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(source string, err error) {
	a.logger.Warn("ALERT: source failed",
		zap.String("source", source),
		zap.Error(err))
}

// Monitor wraps a unit of work with timing, logging and failure alerting. It
// never swallows or transforms the result or the error.
type Monitor struct {
	alerter Alerter
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewMonitor(alerter Alerter, m *monitoring.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{alerter: alerter, metrics: m, logger: logger}
}

func (m *Monitor) Run(label string, fn func() (int, error)) (int, error) {
	start := time.Now()
	m.logger.Info("starting source", zap.String("source", label))

	count, err := fn()
	elapsed := time.Since(start)
	m.metrics.ObserveScrape(label, elapsed, err == nil)

	if err != nil {
		m.logger.Error("source failed",
			zap.String("source", label),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if m.alerter != nil {
			m.alerter.Alert(label, err)
		}
		return count, err
	}

	m.logger.Info("source completed",
		zap.String("source", label),
		zap.Duration("elapsed", elapsed),
		zap.Int("new_items", count))
	return count, nil
}
