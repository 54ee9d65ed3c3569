package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/dukerupert/menuboard/internal/store"
	"github.com/dukerupert/menuboard/internal/websocket"
	"github.com/go-chi/chi/v5"
)

// AdminNotificationTable is the change-feed table name for admin notifications.
const AdminNotificationTable = "admin_notifications"

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Notifier queues an admin notification for push and email delivery.
// *push.Notifier implements it.
type Notifier interface {
	Notify(n model.AdminNotification) bool
}

type AdminNotificationHandler struct {
	store    *store.AdminNotificationStore
	hub      *websocket.Hub
	notifier Notifier
	logger   *slog.Logger
}

// NewAdminNotificationHandler creates the handler. notifier may be nil.
func NewAdminNotificationHandler(s *store.AdminNotificationStore, hub *websocket.Hub, notifier Notifier, logger *slog.Logger) *AdminNotificationHandler {
	return &AdminNotificationHandler{store: s, hub: hub, notifier: notifier, logger: logger}
}

func (h *AdminNotificationHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// List handles GET /rest/v1/admin-notifications?unread=&limit=
func (h *AdminNotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	list, err := h.store.List(r.Context(), unreadOnly, limit)
	if err != nil {
		h.logger.Error("list admin notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if list == nil {
		list = []model.AdminNotification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UnreadCount handles GET /rest/v1/admin-notifications/unread-count
func (h *AdminNotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.UnreadCount(r.Context())
	if err != nil {
		h.logger.Error("count unread admin notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

type createNotificationRequest struct {
	Kind            string          `json:"kind"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	EstablishmentID string          `json:"establishment_id"`
	ResellerID      string          `json:"reseller_id"`
	Metadata        json.RawMessage `json:"metadata"`
}

// Create handles POST /rest/v1/admin-notifications
func (h *AdminNotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Kind == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "kind and title are required")
		return
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		writeError(w, http.StatusBadRequest, "metadata must be JSON")
		return
	}

	n, err := h.store.Create(r.Context(), &model.AdminNotification{
		Kind:            req.Kind,
		Title:           req.Title,
		Message:         req.Message,
		EstablishmentID: req.EstablishmentID,
		ResellerID:      req.ResellerID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.logger.Error("create admin notification", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}

	h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventInsert, n, ""))
	if h.notifier != nil {
		h.notifier.Notify(*n)
	}

	writeJSON(w, http.StatusCreated, n)
}

// Update handles PATCH /rest/v1/admin-notifications/{id}
func (h *AdminNotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Read *bool `json:"read"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Read == nil {
		writeError(w, http.StatusBadRequest, "read is required")
		return
	}

	n, err := h.store.SetRead(r.Context(), id, *req.Read)
	if err != nil {
		h.logger.Error("update admin notification", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventUpdate, n, ""))
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /rest/v1/admin-notifications/read-all
func (h *AdminNotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.store.MarkAllRead(r.Context())
	if err != nil {
		h.logger.Error("mark all admin notifications read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	if updated > 0 {
		h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventUpdate, map[string]bool{"read": true}, ""))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// Delete handles DELETE /rest/v1/admin-notifications/{id}
func (h *AdminNotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("delete admin notification", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}

	h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventDelete, nil, id))
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles DELETE /rest/v1/admin-notifications with a body of
// {"ids": [...]} or {"read": true}.
func (h *AdminNotificationHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs  []string `json:"ids"`
		Read bool     `json:"read"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var (
		deleted int64
		err     error
	)
	switch {
	case len(req.IDs) > 0:
		deleted, err = h.store.DeleteMany(r.Context(), req.IDs)
	case req.Read:
		deleted, err = h.store.DeleteRead(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "ids or read is required")
		return
	}
	if err != nil {
		h.logger.Error("bulk delete admin notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete notifications")
		return
	}

	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventDelete, nil, id))
		}
	} else if deleted > 0 {
		h.broadcast(websocket.NewChange(AdminNotificationTable, websocket.EventDelete, nil, ""))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
