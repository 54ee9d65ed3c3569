package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/dukerupert/menuboard/internal/push"
	"github.com/dukerupert/menuboard/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	logger    *slog.Logger
}

// NewPushHandler creates the subscription handler. svc is nil when VAPID keys
// are not configured.
func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

// GetVAPIDKey handles GET /rest/v1/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Upsert handles PUT /rest/v1/push-subscriptions. A record already stored for
// the same scope key is replaced.
func (h *PushHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req model.PushSubscription
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if !req.Scope().Valid() {
		writeError(w, http.StatusBadRequest, "establishment_id and customer_phone, or user_id, are required")
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	sub, err := h.pushStore.Upsert(r.Context(), &req)
	if err != nil {
		h.logger.Error("upsert push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /rest/v1/push-subscriptions with either
// establishment_id and customer_phone, or user_id and endpoint.
func (h *PushHandler) Delete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := model.SubscriptionScope{
		EstablishmentID: q.Get("establishment_id"),
		CustomerPhone:   q.Get("customer_phone"),
		UserID:          q.Get("user_id"),
		Endpoint:        q.Get("endpoint"),
	}
	if !scope.Valid() {
		writeError(w, http.StatusBadRequest, "establishment_id and customer_phone, or user_id and endpoint, are required")
		return
	}

	if err := h.pushStore.DeleteByScope(r.Context(), scope); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
