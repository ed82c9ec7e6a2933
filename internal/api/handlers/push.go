package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/core"
	"gardenwatch/internal/notify"
	"gardenwatch/internal/types"
)

// SubscriptionStoreInterface is the persistence contract for the push handler.
type SubscriptionStoreInterface interface {
	Save(ctx context.Context, userID int64, endpoint, descriptor string, lat, lon float64) error
	ListByUser(ctx context.Context, userID int64) ([]types.Subscription, error)
	DeleteForUser(ctx context.Context, userID int64, endpoint string) error
}

// PushSenderInterface delivers a single payload to a subscription descriptor.
type PushSenderInterface interface {
	Send(ctx context.Context, descriptor string, payload []byte) error
}

// PushHandler manages web-push subscriptions and test deliveries.
type PushHandler struct {
	store          SubscriptionStoreInterface
	sender         PushSenderInterface
	vapidPublicKey string
	logger         *slog.Logger
}

// NewPushHandler creates the handler. Logger defaults to slog.Default.
func NewPushHandler(store SubscriptionStoreInterface, sender PushSenderInterface, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushHandler{
		store:          store,
		sender:         sender,
		vapidPublicKey: vapidPublicKey,
		logger:         logger,
	}
}

// RegisterPublicRoutes mounts the endpoints that need no authentication.
// The VAPID public key is required by the browser before a user can even
// create a subscription.
func (h *PushHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/push/vapid-public-key", h.HandleVAPIDPublicKey)
}

// RegisterRoutes mounts the authenticated subscription endpoints.
func (h *PushHandler) RegisterRoutes(r chi.Router) {
	r.Post("/push/subscribe", h.HandleSubscribe)
	r.Post("/push/unsubscribe", h.HandleUnsubscribe)
	r.Post("/push/test", h.HandleTest)
}

// HandleVAPIDPublicKey handles GET /api/push/vapid-public-key.
func (h *PushHandler) HandleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{
		"publicKey": h.vapidPublicKey,
	}})
}

// subscribeRequest carries the browser PushSubscription document verbatim in
// Subscription; only the endpoint is inspected server-side.
type subscribeRequest struct {
	Subscription json.RawMessage `json:"subscription"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
}

// HandleSubscribe handles POST /api/push/subscribe. Upserts the caller's
// subscription keyed by (user, endpoint) with the garden coordinates.
func (h *PushHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req subscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	coord := types.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := coord.Validate(); err != nil {
		core.Error(w, r, err)
		return
	}

	endpoint, err := subscriptionEndpoint(req.Subscription)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Save(r.Context(), userID, endpoint, string(req.Subscription), coord.Latitude, coord.Longitude); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "push subscription saved",
		"user_id", userID,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: map[string]bool{"subscribed": true}})
}

// unsubscribeRequest identifies the subscription to remove.
type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// HandleUnsubscribe handles POST /api/push/unsubscribe.
func (h *PushHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req unsubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.Endpoint == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"endpoint is required",
			nil,
		))
		return
	}

	if err := h.store.DeleteForUser(r.Context(), userID, req.Endpoint); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"unsubscribed": true}})
}

// HandleTest handles POST /api/push/test. Sends a test notification to every
// subscription the caller has registered, best effort per endpoint.
func (h *PushHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	subs, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if len(subs) == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			"no push subscriptions registered",
			nil,
		))
		return
	}

	payload, err := json.Marshal(notify.TestPayload())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sent := 0
	for _, sub := range subs {
		if err := h.sender.Send(r.Context(), sub.Descriptor, payload); err != nil {
			h.logger.WarnContext(r.Context(), "test push failed",
				"user_id", userID,
				"error", err,
			)
			continue
		}
		sent++
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int{"sent": sent}})
}

// subscriptionEndpoint extracts the endpoint from a raw PushSubscription
// document.
func subscriptionEndpoint(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidSub,
			"subscription is required",
			nil,
		)
	}

	var doc struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Endpoint == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationInvalidSub,
			"subscription must be a valid PushSubscription with an endpoint",
			err,
		)
	}
	return doc.Endpoint, nil
}
