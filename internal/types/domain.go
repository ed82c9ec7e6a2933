// Package types defines the shared domain model for the GardenWatch service:
// coordinates, forecast samples, hazard verdicts, alert bundles, push
// subscriptions, and stored notifications. Types here carry no behavior beyond
// validation and formatting; services in internal/ operate on them.
package types

import (
	"math"
	"time"
)

// Coordinate is a validated geographic point. Latitude is in [-90, 90],
// longitude in [-180, 180]. Always validate before handing a coordinate to
// the alert engine; the engine assumes in-range values.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Validate checks the coordinate ranges and returns a validation AppError
// naming the offending axis.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return NewAppError(ErrCodeValidationInvalidLat, "latitude must be between -90 and 90", nil)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return NewAppError(ErrCodeValidationInvalidLon, "longitude must be between -180 and 180", nil)
	}
	return nil
}

// ForecastSample is one 3-hour slot from the forecast provider.
// Precipitation is millimeters accumulated over the slot; providers omit the
// field for dry slots, which decodes as zero.
type ForecastSample struct {
	Timestamp     int64   `json:"dt"`
	Temp          float64 `json:"temp"`
	Humidity      int     `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Description   string  `json:"description"`
}

// FrostVerdict reports the coldest slot of tomorrow's night window.
type FrostVerdict struct {
	Temp        int    `json:"temp"` // rounded °C of the coldest sample
	Time        string `json:"time"` // local HH:MM of the coldest sample
	IsFrost     bool   `json:"isFrost"`
	Description string `json:"description"`
	Humidity    int    `json:"humidity"`
}

// HeatVerdict reports the hottest slot of tomorrow's day window.
type HeatVerdict struct {
	IsHeat      bool   `json:"isHeat"`
	IsExtreme   bool   `json:"isExtreme"`
	MaxTemp     int    `json:"maxTemp"` // rounded °C of the hottest sample
	Humidity    int    `json:"humidity"`
	Description string `json:"description"`
}

// RainVerdict reports accumulated precipitation over tomorrow's day window.
type RainVerdict struct {
	IsRain      bool    `json:"isRain"`
	TotalRain   float64 `json:"totalRain"` // mm, rounded to one decimal
	RainHours   int     `json:"rainHours"` // count of slots with nonzero precipitation
	RainsAllDay bool    `json:"willRainAll"`
}

// WateringAdvice is the derived watering recommendation. A nil *WateringAdvice
// means no recommendation and no watering notification.
type WateringAdvice struct {
	Recommendation string `json:"recommendation"`
	ShouldWater    bool   `json:"shouldWater"`
}

// AlertBundle is the immutable result of one compute cycle for a bucket.
// A new fetch produces a new bundle; bundles are never mutated in place,
// which is what makes last-write-wins cache overwrites safe.
type AlertBundle struct {
	City       string          `json:"city"`
	Timezone   string          `json:"timezone"`
	ComputedAt time.Time       `json:"computedAt"`
	Frost      FrostVerdict    `json:"frost"`
	Heat       HeatVerdict     `json:"heat"`
	Rain       RainVerdict     `json:"rain"`
	Watering   *WateringAdvice `json:"watering"`
}

// Subscription is a stored web-push subscription pinned to a coordinate.
// UserID is nil for orphaned rows, which the fan-out must exclude.
// Descriptor is the raw browser PushSubscription JSON (endpoint + keys).
type Subscription struct {
	UserID     *int64  `json:"userId"`
	Endpoint   string  `json:"endpoint"`
	Descriptor string  `json:"-"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// NotificationRecord is a persisted notification, written in batch after a
// fan-out and later served through the inbox endpoints.
type NotificationRecord struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"-"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
}

// CurrentWeather is the simple "weather right now" reading served by the
// current-conditions endpoint, cached with a TTL separately from alerts.
type CurrentWeather struct {
	Temp        int       `json:"temp"` // rounded °C
	Description string    `json:"description"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"` // m/s, one decimal
	Icon        string    `json:"icon"`
	City        string    `json:"city"`
	ObservedAt  time.Time `json:"timestamp"`
}
