package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/websocket"
)

// Broadcaster receives tag events for the admin live feed.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": msg} with the status its code maps
// to, adding "details" when the error carries a collaborator payload.
func writeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status := apperr.StatusOf(err)
	body := map[string]any{"error": apperr.MessageOf(err)}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Details != nil {
		body["details"] = ae.Details
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidFormat("invalid JSON")
	}
	return nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func render(w http.ResponseWriter, tmpl *template.Template, status int, name string, data any, logger *slog.Logger) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("template error", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
