package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/core"
	"gardenwatch/internal/types"
)

// WeatherServiceInterface is the current-conditions contract the weather
// handler needs.
type WeatherServiceInterface interface {
	Current(ctx context.Context, lat, lon float64) (*types.CurrentWeather, bool, error)
}

// WeatherHandler serves the "weather right now" endpoint.
type WeatherHandler struct {
	service WeatherServiceInterface
	logger  *slog.Logger
}

// NewWeatherHandler creates the handler. Logger defaults to slog.Default.
func NewWeatherHandler(svc WeatherServiceInterface, logger *slog.Logger) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the weather endpoint. Public.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/weather/current", h.HandleCurrent)
}

// weatherResponse is the current reading plus cache provenance.
type weatherResponse struct {
	*types.CurrentWeather
	FromCache bool `json:"fromCache"`
}

// HandleCurrent handles GET /api/weather/current.
func (h *WeatherHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	reading, fromCache, err := h.service.Current(r.Context(), coord.Latitude, coord.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: weatherResponse{
		CurrentWeather: reading,
		FromCache:      fromCache,
	}})
}
