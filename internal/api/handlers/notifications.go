package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gardenwatch/internal/core"
	"gardenwatch/internal/types"
)

// Inbox paging defaults and cap.
const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

// NotificationStoreInterface is the inbox persistence contract.
type NotificationStoreInterface interface {
	List(ctx context.Context, userID int64, limit, offset int) ([]types.NotificationRecord, error)
	ListUnread(ctx context.Context, userID int64) ([]types.NotificationRecord, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, notificationID int64) error
}

// NotificationsHandler serves the per-user notification inbox.
type NotificationsHandler struct {
	store  NotificationStoreInterface
	logger *slog.Logger
}

// NewNotificationsHandler creates the handler. Logger defaults to slog.Default.
func NewNotificationsHandler(store NotificationStoreInterface, logger *slog.Logger) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{store: store, logger: logger}
}

// RegisterRoutes mounts the inbox endpoints. All require authentication.
func (h *NotificationsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Get("/notifications/unread", h.HandleListUnread)
	r.Get("/notifications/unread-count", h.HandleUnreadCount)
	r.Post("/notifications/read-all", h.HandleMarkAllRead)
	r.Post("/notifications/{id}/read", h.HandleMarkRead)
	r.Delete("/notifications/{id}", h.HandleDelete)
}

// HandleList handles GET /api/notifications?limit=&offset=.
func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit, offset, err := parsePaging(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	records, err := h.store.List(r.Context(), userID, limit, offset)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []types.NotificationRecord{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}

// HandleListUnread handles GET /api/notifications/unread.
func (h *NotificationsHandler) HandleListUnread(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	records, err := h.store.ListUnread(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []types.NotificationRecord{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}

// HandleUnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	count, err := h.store.UnreadCount(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int{"count": count}})
}

// HandleMarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := notificationID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.MarkRead(r.Context(), userID, id); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"read": true}})
}

// HandleMarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationsHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	affected, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int64{"read": affected}})
}

// HandleDelete handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := notificationID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.Delete(r.Context(), userID, id); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]bool{"deleted": true}})
}

// parsePaging reads the limit/offset query parameters, applying the defaults
// and clamping limit to the cap.
func parsePaging(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultInboxLimit
	offset = 0

	if s := q.Get("limit"); s != "" {
		v, convErr := strconv.Atoi(s)
		if convErr != nil || v <= 0 {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				nil,
			)
		}
		if v > maxInboxLimit {
			v = maxInboxLimit
		}
		limit = v
	}

	if s := q.Get("offset"); s != "" {
		v, convErr := strconv.Atoi(s)
		if convErr != nil || v < 0 {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"offset must be a non-negative integer",
				nil,
			)
		}
		offset = v
	}

	return limit, offset, nil
}

// notificationID parses the {id} route parameter.
func notificationID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppError(
			types.ErrCodeNotFoundNotification,
			"notification not found",
			nil,
		)
	}
	return id, nil
}
