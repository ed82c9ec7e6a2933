package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardenwatch/internal/types"
)

type mockForecastProvider struct {
	city    string
	samples []types.ForecastSample
	err     error
	calls   int
}

func (m *mockForecastProvider) FetchForecast(ctx context.Context, lat, lon float64) (string, []types.ForecastSample, error) {
	m.calls++
	if m.err != nil {
		return "", nil, m.err
	}
	return m.city, m.samples, nil
}

type mockDispatcher struct {
	bundles []*types.AlertBundle
	err     error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, bundle *types.AlertBundle, lat, lon float64) error {
	m.bundles = append(m.bundles, bundle)
	return m.err
}

type mockRegistrar struct {
	buckets []string
	jobFns  []JobFunc
	err     error
}

func (m *mockRegistrar) EnsureScheduled(bucket string, lat, lon float64, jobFn JobFunc) error {
	if m.err != nil {
		return m.err
	}
	m.buckets = append(m.buckets, bucket)
	m.jobFns = append(m.jobFns, jobFn)
	return nil
}

// serviceFixture wires a Service against mocks with a fake clock pinned to
// 2026-03-10 10:00 UTC, so "tomorrow" is March 11.
type serviceFixture struct {
	svc       *Service
	provider  *mockForecastProvider
	dispatch  *mockDispatcher
	registrar *mockRegistrar
	cache     *Cache
	clock     *clockwork.FakeClock
}

func tomorrowSample(hourUTC int, temp, precip float64) types.ForecastSample {
	return types.ForecastSample{
		Timestamp:     time.Date(2026, 3, 11, hourUTC, 0, 0, 0, time.UTC).Unix(),
		Temp:          temp,
		Precipitation: precip,
	}
}

func newServiceFixture(provider *mockForecastProvider) *serviceFixture {
	f := &serviceFixture{
		provider:  provider,
		dispatch:  &mockDispatcher{},
		registrar: &mockRegistrar{},
		cache:     NewCache(),
		clock:     clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(ServiceConfig{
		Provider:       provider,
		Resolver:       &mockResolver{timezone: "UTC"},
		Cache:          f.cache,
		Scheduler:      f.registrar,
		Notifier:       f.dispatch,
		Clock:          f.clock,
		FrostThreshold: DefaultFrostThreshold,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func coveringForecast() []types.ForecastSample {
	return []types.ForecastSample{
		tomorrowSample(0, 1, 0),
		tomorrowSample(3, -5, 0),
		tomorrowSample(12, 36, 0),
		tomorrowSample(15, 28, 0.7),
	}
}

func TestRefreshComputesCachesAndDispatches(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})

	bundle, err := f.svc.Refresh(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "Moscow", bundle.City)
	assert.Equal(t, "UTC", bundle.Timezone)

	// Night minimum -5 at 03:00; day maximum 36 is extreme; 0.7mm is rain,
	// and rain outranks heat in the watering advice.
	assert.True(t, bundle.Frost.IsFrost)
	assert.Equal(t, -5, bundle.Frost.Temp)
	assert.Equal(t, "03:00", bundle.Frost.Time)
	assert.True(t, bundle.Heat.IsExtreme)
	assert.Equal(t, 36, bundle.Heat.MaxTemp)
	assert.True(t, bundle.Rain.IsRain)
	assert.Equal(t, 0.7, bundle.Rain.TotalRain)
	require.NotNil(t, bundle.Watering)
	assert.False(t, bundle.Watering.ShouldWater)

	cached, ok := f.cache.Get("55.75,37.62")
	require.True(t, ok)
	assert.Same(t, bundle, cached)

	require.Len(t, f.dispatch.bundles, 1)
	assert.Same(t, bundle, f.dispatch.bundles[0])
}

func TestGetOrComputeCacheHitSkipsProvider(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})

	first, fromCache, err := f.svc.GetOrCompute(context.Background(), 55.751, 37.618)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, fromCache)
	assert.Equal(t, 1, f.provider.calls)

	// Same bucket, slightly different coordinates: served from cache.
	second, fromCache, err := f.svc.GetOrCompute(context.Background(), 55.753, 37.619)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.provider.calls)
	assert.Len(t, f.registrar.buckets, 1)
}

func TestGetOrComputeRegistersBucketJobOnce(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})

	_, _, err := f.svc.GetOrCompute(context.Background(), 55.751, 37.618)
	require.NoError(t, err)

	require.Equal(t, []string{"55.75,37.62"}, f.registrar.buckets)

	// The registered job body runs a fresh compute cycle.
	require.Len(t, f.registrar.jobFns, 1)
	f.registrar.jobFns[0](55.751, 37.618)
	assert.Equal(t, 2, f.provider.calls)
	assert.Len(t, f.dispatch.bundles, 2)
}

func TestGetOrComputeEmptyWindowHasNoSideEffects(t *testing.T) {
	// All samples on March 12: outside both of tomorrow's windows.
	stale := []types.ForecastSample{
		{Timestamp: time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC).Unix(), Temp: -5},
	}
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: stale})

	bundle, fromCache, err := f.svc.GetOrCompute(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.False(t, fromCache)
	assert.Equal(t, 0, f.cache.Len())
	assert.Empty(t, f.registrar.buckets)
	assert.Empty(t, f.dispatch.bundles)
}

func TestRefreshEmptyNightWindow(t *testing.T) {
	// Day samples only: the night window [00:00, 06:00] has nothing.
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: []types.ForecastSample{
		tomorrowSample(9, 20, 0),
		tomorrowSample(12, 22, 0),
	}})

	bundle, err := f.svc.Refresh(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.Equal(t, 0, f.cache.Len())
}

func TestRefreshProviderErrorPropagates(t *testing.T) {
	upstreamErr := types.NewAppError(types.ErrCodeUpstreamTimeout, "forecast fetch timed out", nil)
	f := newServiceFixture(&mockForecastProvider{err: upstreamErr})

	bundle, err := f.svc.Refresh(context.Background(), 55.751, 37.618)

	require.Error(t, err)
	assert.ErrorIs(t, err, upstreamErr)
	assert.Nil(t, bundle)
	assert.Equal(t, 0, f.cache.Len())
	assert.Empty(t, f.dispatch.bundles)
}

func TestRefreshDispatchFailureIsNotFatal(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})
	f.dispatch.err = errors.New("push relay down")

	bundle, err := f.svc.Refresh(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, 1, f.cache.Len())
}

func TestGetOrComputeSchedulingFailureIsNotFatal(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})
	f.registrar.err = errors.New("registry full")

	bundle, fromCache, err := f.svc.GetOrCompute(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.False(t, fromCache)
	assert.Equal(t, 1, f.cache.Len())
}

func TestRefreshBypassesCache(t *testing.T) {
	f := newServiceFixture(&mockForecastProvider{city: "Moscow", samples: coveringForecast()})

	_, _, err := f.svc.GetOrCompute(context.Background(), 55.751, 37.618)
	require.NoError(t, err)

	// A forced refresh recomputes even though the bucket is cached.
	f.clock.Advance(time.Hour)
	bundle, err := f.svc.Refresh(context.Background(), 55.751, 37.618)

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, 2, f.provider.calls)

	cached, ok := f.cache.Get("55.75,37.62")
	require.True(t, ok)
	assert.Same(t, bundle, cached)
}
