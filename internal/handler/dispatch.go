package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/dukerupert/menuboard/internal/push"
)

type DispatchHandler struct {
	dispatcher *push.Dispatcher
	logger     *slog.Logger
}

// NewDispatchHandler creates the dispatch handler. d is nil when VAPID keys are
// not configured.
func NewDispatchHandler(d *push.Dispatcher, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: d, logger: logger}
}

type dispatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Send handles POST /functions/v1/send-push-notification
func (h *DispatchHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.StatusChange
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := push.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.dispatcher == nil {
		writeError(w, http.StatusInternalServerError, "push notifications are not configured")
		return
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), req)
	if errors.Is(err, push.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("dispatch order status", "order_id", req.OrderID, "status", req.NewStatus, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send notification")
		return
	}

	switch outcome {
	case push.OutcomeSent:
		writeJSON(w, http.StatusOK, dispatchResponse{Success: true})
	case push.OutcomeNoMessage:
		writeJSON(w, http.StatusOK, dispatchResponse{Success: true, Message: fmt.Sprintf("no message for status %q", req.NewStatus)})
	case push.OutcomeNoSubscription:
		writeJSON(w, http.StatusOK, dispatchResponse{Success: false, Message: "no subscription found for this customer"})
	case push.OutcomeExpired:
		writeJSON(w, http.StatusOK, dispatchResponse{Success: false, Message: "subscription expired and was removed"})
	}
}
