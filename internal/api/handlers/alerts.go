package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/core"
	"gardenwatch/internal/types"
)

// AlertServiceInterface is the orchestrator contract the alert handler needs.
// Defined locally to keep the handler decoupled from the alerts package
// implementation.
type AlertServiceInterface interface {
	GetOrCompute(ctx context.Context, lat, lon float64) (*types.AlertBundle, bool, error)
	Refresh(ctx context.Context, lat, lon float64) (*types.AlertBundle, error)
}

// AlertsHandler maps HTTP requests to the alert orchestrator.
type AlertsHandler struct {
	service AlertServiceInterface
	logger  *slog.Logger
}

// NewAlertsHandler creates the handler. Logger defaults to slog.Default.
func NewAlertsHandler(svc AlertServiceInterface, logger *slog.Logger) *AlertsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertsHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the alert endpoints. Both are public: the lookup
// serves anonymous garden dashboards and the refresh is invoked by operators
// and external cron triggers.
func (h *AlertsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts", h.HandleGet)
	r.Post("/alerts/refresh", h.HandleRefresh)
}

// alertResponse is the alert bundle plus cache provenance.
type alertResponse struct {
	*types.AlertBundle
	FromCache bool `json:"fromCache"`
}

// HandleGet handles GET /api/alerts. Serves the bucket's cached bundle when
// present; otherwise runs a full compute-and-notify cycle. Returns 204 when
// the forecast has no samples in tomorrow's windows.
func (h *AlertsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	bundle, fromCache, err := h.service.GetOrCompute(r.Context(), coord.Latitude, coord.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if bundle == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alertResponse{
		AlertBundle: bundle,
		FromCache:   fromCache,
	}})
}

// HandleRefresh handles POST /api/alerts/refresh. Forces a recompute for the
// coordinate's bucket, bypassing the cache. Returns 204 when the forecast has
// no samples in tomorrow's windows.
func (h *AlertsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	bundle, err := h.service.Refresh(r.Context(), coord.Latitude, coord.Longitude)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if bundle == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alertResponse{
		AlertBundle: bundle,
		FromCache:   false,
	}})
}
