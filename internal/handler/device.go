package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/devicelink"
	"github.com/foresafe/foresafe/internal/validation"
	"github.com/foresafe/foresafe/internal/websocket"
)

// DeviceHandler serves the companion app's device-link API.
type DeviceHandler struct {
	linker    *devicelink.Linker
	validator *validation.Validator
	events    Broadcaster
	logger    *slog.Logger
}

func NewDeviceHandler(l *devicelink.Linker, v *validation.Validator, events Broadcaster, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{linker: l, validator: v, events: events, logger: logger}
}

type linkRequest struct {
	TagID          string `json:"tagId" validate:"required"`
	SubscriptionID string `json:"subscriptionId"`
}

type pushRequest struct {
	TagID          string `json:"tagId" validate:"required"`
	SubscriptionID string `json:"subscriptionId"`
	Enabled        *bool  `json:"enabled" validate:"required"`
}

type unlinkRequest struct {
	TagID string `json:"tagId" validate:"required"`
}

// Link handles POST /api/devices/link
func (h *DeviceHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	state, err := h.linker.Link(r.Context(), req.TagID, req.SubscriptionID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	h.events.Broadcast(websocket.NewMessage(websocket.EventDeviceLinked, state.TagID, map[string]any{"synced": state.Synced}))
	writeJSON(w, http.StatusOK, state)
}

// SetPush handles PUT /api/devices/push
func (h *DeviceHandler) SetPush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	state, err := h.linker.SetPushEnabled(r.Context(), req.TagID, req.SubscriptionID, *req.Enabled)
	if err != nil {
		if state == nil {
			writeError(w, err, h.logger)
			return
		}
		// Report the reverted state with the error so the app can resync.
		body := map[string]any{"error": apperr.MessageOf(err), "state": state}
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Details != nil {
			body["details"] = ae.Details
		}
		if apperr.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("toggle push", "tag_id", state.TagID, "error", err)
		}
		writeJSON(w, apperr.StatusOf(err), body)
		return
	}

	h.events.Broadcast(websocket.NewMessage(websocket.EventPushToggled, state.TagID, map[string]any{"enabled": state.PushEnabled}))
	writeJSON(w, http.StatusOK, state)
}

// Unlink handles POST /api/devices/unlink
func (h *DeviceHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	var req unlinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, h.logger)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, err, h.logger)
		return
	}

	state, err := h.linker.Unlink(r.Context(), req.TagID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
