package handler

import (
	"log/slog"
	"net/http"

	"github.com/foresafe/foresafe/internal/dispatch"
	"github.com/foresafe/foresafe/internal/metrics"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/validation"
	"github.com/foresafe/foresafe/internal/websocket"
)

type AlertHandler struct {
	dispatcher *dispatch.Dispatcher
	validator  *validation.Validator
	events     Broadcaster
	logger     *slog.Logger
}

func NewAlertHandler(d *dispatch.Dispatcher, v *validation.Validator, events Broadcaster, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{dispatcher: d, validator: v, events: events, logger: logger}
}

type sendAlertRequest struct {
	TagID string `json:"tagId" validate:"required"`
	Type  string `json:"type" validate:"required,alert_category"`
}

type sendAlertResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OneSignalID string `json:"oneSignalId"`
	RelayLink   string `json:"relayLink,omitempty"`
}

// SendAlert handles POST /api/send-alert
func (h *AlertHandler) SendAlert(w http.ResponseWriter, r *http.Request) {
	var req sendAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	// The validator already accepted the category, so this cannot fail.
	category, _ := model.ParseCategory(req.Type)

	res, err := h.dispatcher.Dispatch(r.Context(), req.TagID, category)
	metrics.Alerts.WithLabelValues(string(category), metrics.Result(err)).Inc()
	if err != nil {
		h.events.Broadcast(websocket.NewMessage(websocket.EventAlertFailed, req.TagID, map[string]any{
			"category": category,
			"result":   metrics.Result(err),
		}))
		writeError(w, err, h.logger)
		return
	}

	h.events.Broadcast(websocket.NewMessage(websocket.EventAlertSent, res.TagID, map[string]any{
		"category":    category,
		"oneSignalId": res.NotificationID,
	}))

	writeJSON(w, http.StatusOK, sendAlertResponse{
		Success:     true,
		Message:     "Alert sent successfully",
		OneSignalID: res.NotificationID,
		RelayLink:   res.RelayLink,
	})
}
