package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/metrics"
	"github.com/foresafe/foresafe/internal/registration"
	"github.com/foresafe/foresafe/internal/tag"
	"github.com/foresafe/foresafe/internal/websocket"
)

// CountryCodes are the dialing prefixes offered on the registration form.
var CountryCodes = []string{"+91", "+1", "+44", "+61", "+971", "+65"}

type RegisterHandler struct {
	service            *registration.Service
	tags               TagGetter
	events             Broadcaster
	publicURL          string
	defaultCountryCode string
	templates          *template.Template
	logger             *slog.Logger
}

func NewRegisterHandler(
	svc *registration.Service,
	tags TagGetter,
	events Broadcaster,
	publicURL string,
	defaultCountryCode string,
	tmpl *template.Template,
	logger *slog.Logger,
) *RegisterHandler {
	return &RegisterHandler{
		service:            svc,
		tags:               tags,
		events:             events,
		publicURL:          publicURL,
		defaultCountryCode: defaultCountryCode,
		templates:          tmpl,
		logger:             logger,
	}
}

type registerForm struct {
	Title        string
	TagID        string
	TagLocked    bool
	CountryCode  string
	CountryCodes []string
	WhatsApp     string
	PushToken    string
	Error        string
}

func (h *RegisterHandler) form(tagID string) registerForm {
	return registerForm{
		Title:        "Activate your tag",
		TagID:        tagID,
		CountryCode:  h.defaultCountryCode,
		CountryCodes: CountryCodes,
	}
}

// Form handles GET /register
func (h *RegisterHandler) Form(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := h.form(tag.NormalizeID(q.Get("tag")))
	f.TagLocked = f.TagID != ""
	f.PushToken = q.Get("push_token")
	render(w, h.templates, http.StatusOK, "register.html", f, h.logger)
}

// Submit handles POST /register
func (h *RegisterHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	req := registration.Request{
		TagID:       r.PostFormValue("tag_id"),
		Channel:     r.PostFormValue("whatsapp"),
		CountryCode: r.PostFormValue("country_code"),
		PushToken:   r.PostFormValue("push_token"),
	}

	t, err := h.service.Register(r.Context(), req)
	metrics.Registrations.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if apperr.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("register tag", "tag_id", req.TagID, "error", err)
		}
		f := h.form(tag.NormalizeID(req.TagID))
		if req.CountryCode != "" {
			f.CountryCode = req.CountryCode
		}
		f.WhatsApp = req.Channel
		f.PushToken = req.PushToken
		f.Error = apperr.MessageOf(err)
		render(w, h.templates, apperr.StatusOf(err), "register.html", f, h.logger)
		return
	}

	h.events.Broadcast(websocket.NewMessage(websocket.EventRegistered, t.TagID, nil))
	http.Redirect(w, r, "/register/success?id="+url.QueryEscape(t.TagID), http.StatusSeeOther)
}

// Success handles GET /register/success
func (h *RegisterHandler) Success(w http.ResponseWriter, r *http.Request) {
	id := tag.NormalizeID(r.URL.Query().Get("id"))

	t, err := h.tags.Get(r.Context(), id)
	if err != nil || t == nil || !t.IsRegistered {
		http.Redirect(w, r, tag.RegisterPath(id), http.StatusSeeOther)
		return
	}

	data := map[string]any{
		"Title":   "Tag activated",
		"TagID":   t.TagID,
		"ScanURL": tag.ScanURL(h.publicURL, t.TagID),
	}
	render(w, h.templates, http.StatusOK, "register_success.html", data, h.logger)
}
