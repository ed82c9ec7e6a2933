package weather

import (
	"context"
	"log/slog"

	"gardenwatch/internal/geo"
	"gardenwatch/internal/observability"
	"gardenwatch/internal/types"
)

// CurrentProvider fetches current conditions for a coordinate.
// Implemented by *Client.
type CurrentProvider interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (*types.CurrentWeather, error)
}

// Service serves current weather through the per-bucket TTL cache.
type Service struct {
	provider CurrentProvider
	cache    *Cache
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates the current-weather service.
func NewService(provider CurrentProvider, cache *Cache, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		logger:   logger,
		metrics:  metrics,
	}
}

// Current returns the current conditions for the coordinate's bucket,
// fetching from the provider only when the cache has no fresh reading.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*types.CurrentWeather, bool, error) {
	bucket := geo.BucketKey(lat, lon)

	if w, ok := s.cache.Get(bucket); ok {
		s.metrics.RecordWeatherCacheHit()
		return w, true, nil
	}
	s.metrics.RecordWeatherCacheMiss()

	w, err := s.provider.FetchCurrent(ctx, lat, lon)
	if err != nil {
		return nil, false, err
	}

	s.cache.Put(bucket, w)
	s.logger.InfoContext(ctx, "current weather refreshed",
		"bucket", bucket,
		"city", w.City,
	)

	return w, false, nil
}
