package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/importer"
	"github.com/foresafe/foresafe/internal/metrics"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/qrbatch"
	"github.com/foresafe/foresafe/internal/websocket"
)

const (
	maxImportSize = 10 << 20
	tagListLimit  = 100
)

type TagLister interface {
	List(ctx context.Context, search string, limit int) ([]model.Tag, error)
}

// InventoryHandler serves the admin tag list, CSV import and QR export.
type InventoryHandler struct {
	tags      TagLister
	importer  *importer.Importer
	exporter  *qrbatch.Exporter
	publisher *qrbatch.Publisher
	events    Broadcaster
	now       func() time.Time
	templates *template.Template
	logger    *slog.Logger
}

func NewInventoryHandler(
	tags TagLister,
	im *importer.Importer,
	exp *qrbatch.Exporter,
	pub *qrbatch.Publisher,
	events Broadcaster,
	tmpl *template.Template,
	logger *slog.Logger,
) *InventoryHandler {
	return &InventoryHandler{
		tags:      tags,
		importer:  im,
		exporter:  exp,
		publisher: pub,
		events:    events,
		now:       time.Now,
		templates: tmpl,
		logger:    logger,
	}
}

type tagsPage struct {
	Title      string
	Query      string
	Tags       []model.Tag
	Import     *importer.Result
	CanPublish bool
	Error      string
	Notice     string
}

func (h *InventoryHandler) renderTags(w http.ResponseWriter, r *http.Request, status int, page tagsPage) {
	page.Title = "Tags"
	page.CanPublish = h.publisher != nil && h.publisher.Configured()

	tags, err := h.tags.List(r.Context(), page.Query, tagListLimit)
	if err != nil {
		h.logger.Error("list tags", "error", err)
		if page.Error == "" {
			page.Error = "Failed to load tags"
		}
		status = http.StatusInternalServerError
	}
	page.Tags = tags
	render(w, h.templates, status, "admin_tags.html", page, h.logger)
}

// List handles GET /admin/tags
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	h.renderTags(w, r, http.StatusOK, tagsPage{Query: strings.TrimSpace(r.URL.Query().Get("q"))})
}

// Import handles POST /admin/tags/import
func (h *InventoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		h.renderTags(w, r, http.StatusBadRequest, tagsPage{Error: "Please choose a CSV file to upload"})
		return
	}
	defer file.Close()

	res, err := h.importer.Import(r.Context(), file)
	if err != nil {
		if apperr.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("import tags", "error", err)
		}
		h.renderTags(w, r, apperr.StatusOf(err), tagsPage{Error: apperr.MessageOf(err)})
		return
	}

	metrics.TagsImported.Add(float64(res.Inserted))
	h.events.Broadcast(websocket.NewMessage(websocket.EventImported, "", map[string]any{
		"processed": res.Processed,
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
		"invalid":   res.Invalid,
	}))
	h.renderTags(w, r, http.StatusOK, tagsPage{Import: res})
}

// ExportQR handles GET /admin/tags/qr.zip. The inventory is read and
// checked against the cap before any bytes are written.
func (h *InventoryHandler) ExportQR(w http.ResponseWriter, r *http.Request) {
	ids, err := h.exporter.IDs(r.Context())
	if err != nil {
		if apperr.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("load tags for export", "error", err)
		}
		http.Error(w, apperr.MessageOf(err), apperr.StatusOf(err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, qrbatch.FileName(h.now())))
	if _, err := h.exporter.WriteArchive(r.Context(), w, ids); err != nil {
		// Headers are gone; the client sees a truncated archive.
		h.logger.Error("stream qr archive", "error", err)
	}
}

// PublishQR handles POST /admin/tags/qr/publish
func (h *InventoryHandler) PublishQR(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || !h.publisher.Configured() {
		h.renderTags(w, r, http.StatusBadRequest, tagsPage{Error: "Object storage is not configured"})
		return
	}

	pub, err := h.publisher.Publish(r.Context(), h.now())
	if err != nil {
		h.logger.Error("publish qr archive", "error", err)
		var ae *apperr.Error
		msg := "Failed to publish QR codes"
		status := http.StatusBadGateway
		if errors.As(err, &ae) {
			msg, status = ae.Message, ae.HTTPStatus()
		}
		h.renderTags(w, r, status, tagsPage{Error: msg})
		return
	}

	h.renderTags(w, r, http.StatusOK, tagsPage{
		Notice: fmt.Sprintf("Published %d QR codes to %s/%s", pub.Count, pub.Bucket, pub.Key),
	})
}
