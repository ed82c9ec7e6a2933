package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"gardenwatch/internal/observability"
	"gardenwatch/internal/types"
)

// NotifyRadiusKm is the default radius around a bucket's coordinate within
// which subscribers receive its alerts.
const NotifyRadiusKm = 2.0

// fanoutConcurrency caps simultaneous push deliveries. Push services tolerate
// bursts, but an unbounded goroutine-per-subscriber spike helps nobody.
const fanoutConcurrency = 8

// SubscriptionStore is the persistence surface the fan-out reads subscribers
// from and prunes dead endpoints through.
type SubscriptionStore interface {
	FindByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]types.Subscription, error)
	Delete(ctx context.Context, endpoint string) error
}

// NotificationStore persists delivered notifications for the inbox. SaveBatch
// returns the number of rows written.
type NotificationStore interface {
	SaveBatch(ctx context.Context, records []types.NotificationRecord) (int, error)
}

// PushSender delivers one encoded payload to one subscription descriptor.
// Implemented by *WebPushSender.
type PushSender interface {
	Send(ctx context.Context, descriptor string, payload []byte) error
}

// Service is the notification fan-out. Delivery is best effort: individual
// push failures are counted and logged, never propagated, and a subscription
// the push service reports as gone is deleted so the next fan-out skips it.
// Only notifications that were actually delivered are persisted to the inbox,
// in a single batch write at the end.
type Service struct {
	subs    SubscriptionStore
	inbox   NotificationStore
	sender  PushSender
	logger  *slog.Logger
	metrics *observability.Metrics

	radiusKm float64
}

// ServiceConfig holds the dependencies for creating a fan-out Service.
// RadiusKm defaults to NotifyRadiusKm.
type ServiceConfig struct {
	Subscriptions SubscriptionStore
	Notifications NotificationStore
	Sender        PushSender
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	RadiusKm      float64
}

// NewService creates the fan-out service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	radius := cfg.RadiusKm
	if radius <= 0 {
		radius = NotifyRadiusKm
	}
	return &Service{
		subs:     cfg.Subscriptions,
		inbox:    cfg.Notifications,
		sender:   cfg.Sender,
		logger:   logger,
		metrics:  cfg.Metrics,
		radiusKm: radius,
	}
}

// Dispatch pushes the bundle's payloads to every subscriber within the radius
// of the coordinate, then batch-persists what was delivered. It returns an
// error only when the subscriber query or the batch write fails; delivery
// failures are absorbed.
func (s *Service) Dispatch(ctx context.Context, bundle *types.AlertBundle, lat, lon float64) error {
	payloads := BuildPayloads(bundle)
	if len(payloads) == 0 {
		return nil
	}

	minLat, maxLat, minLon, maxLon := boundingBox(lat, lon, s.radiusKm)
	subs, err := s.subs.FindByBoundingBox(ctx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return fmt.Errorf("loading subscribers: %w", err)
	}
	if len(subs) == 0 {
		s.logger.InfoContext(ctx, "alerts ready but no subscribers nearby",
			"city", bundle.City,
		)
		return nil
	}

	encoded := make([][]byte, len(payloads))
	for i, p := range payloads {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload %s: %w", p.Tag, err)
		}
		encoded[i] = body
	}

	var mu sync.Mutex
	var delivered []types.NotificationRecord
	var gone []types.Subscription
	sent, failed := 0, 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutConcurrency)

	for _, sub := range subs {
		if sub.UserID == nil || sub.Descriptor == "" {
			continue
		}
		sub := sub

		g.Go(func() error {
			for i, p := range payloads {
				err := s.sender.Send(gCtx, sub.Descriptor, encoded[i])
				switch {
				case err == nil:
					s.metrics.RecordNotification("delivered")
					mu.Lock()
					sent++
					delivered = append(delivered, types.NotificationRecord{
						UserID: *sub.UserID,
						Title:  p.Title,
						Body:   p.Body,
						Type:   p.Kind,
						Data:   map[string]any{"city": bundle.City},
					})
					mu.Unlock()

				case isGone(err):
					// Dead endpoint: skip its remaining payloads and queue
					// the subscription for pruning.
					s.metrics.RecordNotification("gone")
					mu.Lock()
					failed += len(payloads) - i
					gone = append(gone, sub)
					mu.Unlock()
					return nil

				default:
					s.metrics.RecordNotification("failed")
					s.logger.WarnContext(gCtx, "push delivery failed",
						"tag", p.Tag,
						"error", err,
					)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	for _, sub := range gone {
		if err := s.subs.Delete(ctx, sub.Endpoint); err != nil {
			s.logger.WarnContext(ctx, "failed to prune expired subscription",
				"error", err,
			)
			continue
		}
		s.logger.InfoContext(ctx, "expired subscription pruned")
	}

	s.logger.InfoContext(ctx, "notification fan-out complete",
		"city", bundle.City,
		"subscribers", len(subs),
		"delivered", sent,
		"failed", failed,
	)

	if len(delivered) == 0 {
		return nil
	}

	saved, err := s.inbox.SaveBatch(ctx, delivered)
	if err != nil {
		return fmt.Errorf("saving notification batch: %w", err)
	}
	s.metrics.RecordBatchSaved()
	s.logger.InfoContext(ctx, "notification batch saved",
		"count", saved,
	)

	return nil
}

// boundingBox converts a radius in kilometers to a coordinate box around the
// point. One degree of latitude is ~111km; a degree of longitude shrinks with
// the cosine of the latitude. Good enough at garden scale, unusable at the
// poles where the cosine vanishes.
func boundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := radiusKm / 111
	lonDelta := radiusKm / (111 * math.Cos(lat*math.Pi/180))
	return lat - latDelta, lat + latDelta, lon - lonDelta, lon + lonDelta
}

// isGone reports whether a delivery error means the subscription is dead.
func isGone(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodePushGone
}
