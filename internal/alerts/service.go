package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"gardenwatch/internal/geo"
	"gardenwatch/internal/observability"
	"gardenwatch/internal/types"
)

// jobTimeout bounds one background compute-and-notify cycle. It is generous
// relative to the 10s upstream fetch ceiling to leave room for fan-out and
// the batch write.
const jobTimeout = 2 * time.Minute

// ForecastProvider fetches the 3-hourly forecast for a coordinate. The
// returned city name is the provider's label for the nearest settlement.
type ForecastProvider interface {
	FetchForecast(ctx context.Context, lat, lon float64) (city string, samples []types.ForecastSample, err error)
}

// Dispatcher fans a computed bundle out to nearby push subscribers.
// Implemented by notify.Service.
type Dispatcher interface {
	Dispatch(ctx context.Context, bundle *types.AlertBundle, lat, lon float64) error
}

// JobRegistrar is the scheduling surface the orchestrator needs.
// Satisfied by *Scheduler.
type JobRegistrar interface {
	EnsureScheduled(bucket string, lat, lon float64, jobFn JobFunc) error
}

// Service is the alert orchestrator. On a cache miss it runs the full
// pipeline: resolve timezone, compute windows, fetch the forecast once,
// classify, cache, notify, and lazily register the bucket's daily job.
// On a cache hit it touches nothing but the cache.
type Service struct {
	provider  ForecastProvider
	resolver  TimezoneResolver
	cache     *Cache
	scheduler JobRegistrar
	notifier  Dispatcher

	clock          clockwork.Clock
	frostThreshold float64
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Provider       ForecastProvider
	Resolver       TimezoneResolver
	Cache          *Cache
	Scheduler      JobRegistrar
	Notifier       Dispatcher
	Clock          clockwork.Clock
	FrostThreshold float64
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// NewService creates the orchestrator. Clock defaults to the real clock and
// Logger to slog.Default.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider:       cfg.Provider,
		resolver:       cfg.Resolver,
		cache:          cfg.Cache,
		scheduler:      cfg.Scheduler,
		notifier:       cfg.Notifier,
		clock:          clock,
		frostThreshold: cfg.FrostThreshold,
		logger:         logger,
		metrics:        cfg.Metrics,
	}
}

// GetOrCompute returns the alert bundle for the coordinate's bucket.
//
// Cache hit: the cached bundle is returned with fromCache=true and nothing
// else happens — in particular the provider is never called.
//
// Cache miss: a full compute-and-notify cycle runs, the bucket's daily job is
// registered, and the fresh bundle is returned with fromCache=false. A nil
// bundle with a nil error means the forecast had no samples in one of the
// windows ("no data"): nothing is cached, scheduled, or notified.
func (s *Service) GetOrCompute(ctx context.Context, lat, lon float64) (*types.AlertBundle, bool, error) {
	bucket := geo.BucketKey(lat, lon)

	if bundle, ok := s.cache.Get(bucket); ok {
		s.metrics.RecordAlertCacheHit()
		return bundle, true, nil
	}
	s.metrics.RecordAlertCacheMiss()

	bundle, err := s.Refresh(ctx, lat, lon)
	if err != nil || bundle == nil {
		return nil, false, err
	}

	if err := s.scheduler.EnsureScheduled(bucket, lat, lon, s.runScheduledCycle); err != nil {
		// The bundle is already computed, cached, and dispatched; a failed
		// registration only loses tomorrow's refresh, so log and serve.
		s.logger.ErrorContext(ctx, "failed to schedule bucket job",
			"bucket", bucket,
			"error", err,
		)
	}

	return bundle, false, nil
}

// Refresh runs one compute-and-notify cycle unconditionally, without
// consulting the cache first. It is both the daily job body and the forced
// recompute endpoint. Returns nil, nil when either forecast window has no
// samples; in that case nothing is cached or dispatched.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (*types.AlertBundle, error) {
	bucket := geo.BucketKey(lat, lon)

	tz := s.resolver.Resolve(lat, lon)
	if tz == geo.FallbackTimezone {
		s.logger.WarnContext(ctx, "timezone resolution fell back to UTC",
			"bucket", bucket,
		)
	}

	now := s.clock.Now()
	night := geo.TomorrowNight(tz, now)
	day := geo.TomorrowDay(tz, now)

	city, samples, err := s.provider.FetchForecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	nightSamples := geo.FilterSamples(samples, night)
	daySamples := geo.FilterSamples(samples, day)
	if len(nightSamples) == 0 || len(daySamples) == 0 {
		s.metrics.RecordEmptyWindow()
		s.logger.InfoContext(ctx, "no forecast samples in window",
			"bucket", bucket,
			"night_samples", len(nightSamples),
			"day_samples", len(daySamples),
		)
		return nil, nil
	}

	heat := ClassifyHeat(daySamples)
	rain := ClassifyRain(daySamples)
	bundle := &types.AlertBundle{
		City:       city,
		Timezone:   tz,
		ComputedAt: now,
		Frost:      ClassifyFrost(nightSamples, s.frostThreshold, tz),
		Heat:       heat,
		Rain:       rain,
		Watering:   WateringRecommendation(heat, rain),
	}

	s.cache.Put(bucket, bundle)
	s.metrics.RecordAlertComputed()

	s.logVerdicts(ctx, bucket, bundle)

	if err := s.notifier.Dispatch(ctx, bundle, lat, lon); err != nil {
		// Fan-out is best effort; a dispatch failure must not fail the
		// compute cycle that already produced and cached the bundle.
		s.logger.ErrorContext(ctx, "notification dispatch failed",
			"bucket", bucket,
			"error", err,
		)
	}

	return bundle, nil
}

// runScheduledCycle is the JobFunc registered with the scheduler. It runs a
// refresh with its own timeout and swallows errors: the scheduler must keep
// firing tomorrow no matter what today's cycle did.
func (s *Service) runScheduledCycle(lat, lon float64) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.Refresh(ctx, lat, lon); err != nil {
		s.logger.ErrorContext(ctx, "scheduled alert cycle failed",
			"bucket", geo.BucketKey(lat, lon),
			"error", err,
		)
	}
}

// logVerdicts emits one info line per active hazard, mirroring what
// operators actually grep for.
func (s *Service) logVerdicts(ctx context.Context, bucket string, b *types.AlertBundle) {
	if b.Frost.IsFrost {
		s.logger.InfoContext(ctx, "frost expected",
			"bucket", bucket,
			"city", b.City,
			"temp", b.Frost.Temp,
			"local_time", b.Frost.Time,
		)
	}
	if b.Rain.IsRain {
		s.logger.InfoContext(ctx, "rain expected",
			"bucket", bucket,
			"city", b.City,
			"total_mm", b.Rain.TotalRain,
		)
	} else if b.Heat.IsHeat {
		s.logger.InfoContext(ctx, "heat expected",
			"bucket", bucket,
			"city", b.City,
			"max_temp", b.Heat.MaxTemp,
		)
	}
}
