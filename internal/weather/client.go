// Package weather wraps the OpenWeather HTTP API behind a circuit breaker and
// maps provider failures to domain error codes. It serves two shapes: the
// 3-hourly forecast feed the alert engine classifies, and the current
// conditions reading served straight to clients through a TTL cache.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"gardenwatch/internal/observability"
	"gardenwatch/internal/types"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// fetchTimeout is the hard ceiling per provider request. Timeouts are not
	// retried; the next scheduled cycle is the retry.
	fetchTimeout = 10 * time.Second
)

// Client talks to the OpenWeather API. All requests run through a circuit
// breaker that opens after consecutive network-level or 5xx failures, so a
// provider outage fails fast instead of stacking 10-second timeouts across
// every bucket's daily cycle.
type Client struct {
	baseURL string
	apiKey  string
	units   string
	lang    string

	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// ClientConfig holds the settings for creating a Client. BaseURL, Units, and
// Lang default to the production endpoint, metric units, and English.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Units      string
	Lang       string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// NewClient creates an OpenWeather client with its own circuit breaker.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	units := cfg.Units
	if units == "" {
		units = "metric"
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "en"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		units:   units,
		lang:    lang,
		client:  httpClient,
		breaker: breaker,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// forecastResponse is the subset of the /forecast payload the engine uses.
type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []forecastItem `json:"list"`
}

type forecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	// Rain is absent for dry slots. The provider reports accumulation per
	// 3-hour slot under the "3h" key.
	Rain *struct {
		ThreeHours float64 `json:"3h"`
	} `json:"rain"`
}

// currentResponse is the subset of the /weather payload served to clients.
type currentResponse struct {
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// FetchForecast returns the provider's city label and the 3-hourly samples
// for the coordinate, covering roughly the next five days.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) (string, []types.ForecastSample, error) {
	body, err := c.get(ctx, "forecast", lat, lon)
	if err != nil {
		return "", nil, err
	}

	var payload forecastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "malformed forecast response", err)
	}

	samples := make([]types.ForecastSample, 0, len(payload.List))
	for _, item := range payload.List {
		sample := types.ForecastSample{
			Timestamp: item.Dt,
			Temp:      item.Main.Temp,
			Humidity:  item.Main.Humidity,
		}
		if len(item.Weather) > 0 {
			sample.Description = item.Weather[0].Description
		}
		if item.Rain != nil {
			sample.Precipitation = item.Rain.ThreeHours
		}
		samples = append(samples, sample)
	}

	return payload.City.Name, samples, nil
}

// FetchCurrent returns the current conditions at the coordinate.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (*types.CurrentWeather, error) {
	body, err := c.get(ctx, "weather", lat, lon)
	if err != nil {
		return nil, err
	}

	var payload currentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "malformed weather response", err)
	}

	current := &types.CurrentWeather{
		Temp:       int(math.Round(payload.Main.Temp)),
		Humidity:   payload.Main.Humidity,
		WindSpeed:  math.Round(payload.Wind.Speed*10) / 10,
		City:       payload.Name,
		ObservedAt: time.Unix(payload.Dt, 0).UTC(),
	}
	if len(payload.Weather) > 0 {
		current.Description = payload.Weather[0].Main
		current.Icon = payload.Weather[0].Icon
	}

	return current, nil
}

// get executes one breaker-guarded request and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string, lat, lon float64) ([]byte, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%g", lat))
	query.Set("lon", fmt.Sprintf("%g", lon))
	query.Set("appid", c.apiKey)
	query.Set("units", c.units)
	query.Set("lang", c.lang)

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building provider request", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count against the breaker; client-side 4xx do not,
		// the provider is healthy and the request is wrong.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("provider returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, c.mapFailure(resp, err)
	}
	defer resp.Body.Close()

	if appErr := c.mapStatus(resp.StatusCode); appErr != nil {
		return nil, appErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordUpstreamFailure("unavailable")
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "reading provider response", err)
	}

	return body, nil
}

// mapStatus translates non-2xx statuses that pass the breaker into AppErrors.
func (c *Client) mapStatus(status int) *types.AppError {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.metrics.RecordUpstreamFailure("auth")
		return types.NewAppError(types.ErrCodeUpstreamAuth, "provider rejected the API key", nil)
	case status == http.StatusNotFound:
		c.metrics.RecordUpstreamFailure("not_found")
		return types.NewAppError(types.ErrCodeUpstreamNotFound, "provider has no data for the coordinate", nil)
	default:
		c.metrics.RecordUpstreamFailure("unavailable")
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("provider returned %d", status), nil)
	}
}

// mapFailure translates breaker and transport failures into AppErrors.
func (c *Client) mapFailure(resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.RecordUpstreamFailure("unavailable")
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "provider circuit open", err)

	case errors.Is(err, context.DeadlineExceeded):
		c.metrics.RecordUpstreamFailure("timeout")
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "provider request timed out", err)

	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.RecordUpstreamFailure("rate_limited")
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "provider rate limit exceeded", err)

	case resp != nil && resp.StatusCode >= 500:
		c.metrics.RecordUpstreamFailure("unavailable")
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("provider returned %d", resp.StatusCode), err)

	default:
		c.metrics.RecordUpstreamFailure("unavailable")
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "provider request failed", err)
	}
}
