package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/tag"
)

type TagGetter interface {
	Get(ctx context.Context, tagID string) (*model.Tag, error)
}

type ScanHandler struct {
	tags      TagGetter
	templates *template.Template
	logger    *slog.Logger
}

func NewScanHandler(tags TagGetter, tmpl *template.Template, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{tags: tags, templates: tmpl, logger: logger}
}

type actionButton struct {
	Category model.Category
	Label    string
	Class    string
}

func actionButtons(cats []model.Category) []actionButton {
	out := make([]actionButton, 0, len(cats))
	for _, c := range cats {
		switch c {
		case model.CategoryGeneral:
			out = append(out, actionButton{c, "Contact Owner", "general"})
		case model.CategoryParking:
			out = append(out, actionButton{c, "Wrong Parking", "parking"})
		case model.CategoryEmergency:
			out = append(out, actionButton{c, "Emergency", "emergency"})
		}
	}
	return out
}

// Home handles GET /
func (h *ScanHandler) Home(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, http.StatusOK, "home.html", map[string]any{"Title": "FORESAFE"}, h.logger)
}

// Scan handles GET /s/{tagId}. The tag is evaluated fresh on every load.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id := tag.NormalizeID(chi.URLParam(r, "tagId"))

	t, err := h.tags.Get(r.Context(), id)
	if err != nil {
		h.logger.Warn("scan lookup failed", "tag_id", id, "error", err)
	}

	state := tag.Classify(t, err)
	if state.NeedsRegistration() {
		http.Redirect(w, r, tag.RegisterPath(id), http.StatusSeeOther)
		return
	}

	data := map[string]any{
		"Title":   "Vehicle Contact",
		"TagID":   id,
		"Muted":   state == tag.StateMuted,
		"Actions": actionButtons(state.Actions()),
	}
	render(w, h.templates, http.StatusOK, "scan.html", data, h.logger)
}
