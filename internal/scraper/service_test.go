package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
)

type fakeGateway struct {
	inserted int
}

func (f *fakeGateway) InsertNew(_ context.Context, candidates []domain.Product) (int, error) {
	f.inserted += len(candidates)
	return len(candidates), nil
}

func newTestService(t *testing.T, sources ...Source) (*Service, *int) {
	t.Helper()
	releases := 0
	uow := func(ctx context.Context) (ProductGateway, func(), error) {
		return &fakeGateway{}, func() { releases++ }, nil
	}
	svc := NewService(
		NewRegistry(zap.NewNop(), sources...),
		NewMonitor(nil, nil, zap.NewNop()),
		uow,
		Options{MaxItems: 100, HealthyMaxItems: 50},
		nil,
		zap.NewNop(),
	)
	return svc, &releases
}

func TestRunAllSourcesIsolatesFailures(t *testing.T) {
	a := &fakeSource{name: "A", count: 3, healthy: true}
	b := &fakeSource{name: "B", err: errors.New("dial tcp: connection refused"), healthy: true}
	svc, releases := newTestService(t, a, b)

	report, err := svc.RunAllSources(context.Background(), "sandals")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A": 3, "B": 0}, report.Counts)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, domain.RunPartiallyFailed, report.Status)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls, "a failing source must not abort its siblings")
	assert.Equal(t, 2, *releases, "one unit of work released per source")
}

func TestRunAllSourcesCompletedWhenAllSucceed(t *testing.T) {
	a := &fakeSource{name: "A", count: 2}
	b := &fakeSource{name: "B", count: 5}
	svc, _ := newTestService(t, a, b)

	report, err := svc.RunAllSources(context.Background(), "slides")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, report.Status)
	assert.Equal(t, 7, report.Total)
}

func TestRunAllSourcesEverySourceFailingStillCompletes(t *testing.T) {
	a := &fakeSource{name: "A", err: errors.New("boom")}
	b := &fakeSource{name: "B", err: errors.New("boom")}
	svc, _ := newTestService(t, a, b)

	report, err := svc.RunAllSources(context.Background(), "thongs")
	require.NoError(t, err, "a batch has no fully-failed terminal state")
	assert.Equal(t, map[string]int{"A": 0, "B": 0}, report.Counts)
	assert.Zero(t, report.Total)
}

func TestRunHealthySourcesSkipsUnhealthy(t *testing.T) {
	a := &fakeSource{name: "A", count: 4, healthy: true}
	b := &fakeSource{name: "B", count: 9, healthy: false}
	svc, _ := newTestService(t, a, b)

	report, err := svc.RunHealthySources(context.Background(), "sandals")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 4}, report.Counts)
	assert.Zero(t, b.calls)
}

func TestRunAllSourcesStopsOnCancelledContext(t *testing.T) {
	a := &fakeSource{name: "A", count: 1}
	svc, _ := newTestService(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.RunAllSources(ctx, "sandals")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.calls)
}

func TestUnitOfWorkFailureCountsAsSourceFailure(t *testing.T) {
	a := &fakeSource{name: "A", count: 3}
	uowErr := errors.New("pool exhausted")
	svc := NewService(
		NewRegistry(zap.NewNop(), a),
		NewMonitor(nil, nil, zap.NewNop()),
		func(ctx context.Context) (ProductGateway, func(), error) { return nil, nil, uowErr },
		Options{MaxItems: 100},
		nil,
		zap.NewNop(),
	)

	report, err := svc.RunAllSources(context.Background(), "sandals")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 0}, report.Counts)
	assert.Equal(t, domain.RunPartiallyFailed, report.Status)
	assert.Zero(t, a.calls)
}
