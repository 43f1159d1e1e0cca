package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/auth"
	"github.com/foresafe/foresafe/internal/middleware"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/store"
	"github.com/foresafe/foresafe/internal/validation"
)

// AdminHandler serves admin sign-in, the dashboard and account settings.
type AdminHandler struct {
	adminStore   *store.AdminStore
	sessionStore *store.SessionStore
	tagStore     *store.TagStore
	validator    *validation.Validator
	secureCookie bool
	templates    *template.Template
	logger       *slog.Logger
}

func NewAdminHandler(
	as *store.AdminStore,
	ss *store.SessionStore,
	ts *store.TagStore,
	v *validation.Validator,
	secureCookie bool,
	tmpl *template.Template,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		adminStore:   as,
		sessionStore: ss,
		tagStore:     ts,
		validator:    v,
		secureCookie: secureCookie,
		templates:    tmpl,
		logger:       logger,
	}
}

// LoginPage handles GET /admin/login
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.templates, http.StatusOK, "admin_login.html", map[string]any{
		"Title": "Admin sign in",
		"Email": "",
		"Error": "",
	}, h.logger)
}

// Login handles POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	fail := func(status int, msg string) {
		render(w, h.templates, status, "admin_login.html", map[string]any{
			"Title": "Admin sign in",
			"Email": emailAddr,
			"Error": msg,
		}, h.logger)
	}

	admin, err := h.adminStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		fail(http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	if admin == nil || !auth.CheckPassword(admin.PasswordHash, password) {
		h.logger.Warn("admin login failed", "email", emailAddr, "remote", middleware.RealIP(r))
		fail(http.StatusUnauthorized, "Invalid email or password")
		return
	}

	sess, err := h.sessionStore.Create(admin.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		fail(http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	h.setSessionCookie(w, sess)
	h.logger.Info("admin signed in", "admin_id", admin.ID)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *AdminHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout handles POST /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := auth.SessionID(r.Context()); id != 0 {
		if err := h.sessionStore.Delete(id); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// RegistrationRate formats registered/total as a percentage with one
// decimal, or "0%" for an empty inventory.
func RegistrationRate(s *model.TagStats) string {
	if s == nil || s.Total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(s.Registered)/float64(s.Total)*100)
}

// Dashboard handles GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tagStore.Stats(r.Context(), 5)
	if err != nil {
		h.logger.Error("load dashboard stats", "error", err)
		http.Error(w, "failed to load data", http.StatusInternalServerError)
		return
	}

	render(w, h.templates, http.StatusOK, "admin_dashboard.html", map[string]any{
		"Title": "Dashboard",
		"Stats": stats,
		"Rate":  RegistrationRate(stats),
	}, h.logger)
}

type passwordForm struct {
	Password string `json:"password" validate:"required,min=6"`
	Confirm  string `json:"confirm" validate:"required,eqfield=Password"`
}

// SettingsPage handles GET /admin/settings
func (h *AdminHandler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	h.renderSettings(w, r, http.StatusOK, "", "")
}

// ChangePassword handles POST /admin/settings
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	form := passwordForm{
		Password: r.FormValue("password"),
		Confirm:  r.FormValue("confirm"),
	}
	if err := h.validator.Validate(form); err != nil {
		if !errors.Is(err, apperr.ErrValidation) {
			h.logger.Error("validate password form", "error", err)
			h.renderSettings(w, r, http.StatusInternalServerError, "Failed to update password", "")
			return
		}
		msg := fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength)
		if len(form.Password) >= auth.MinPasswordLength {
			msg = "Passwords do not match"
		}
		h.renderSettings(w, r, http.StatusBadRequest, msg, "")
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		h.renderSettings(w, r, http.StatusInternalServerError, "Failed to update password", "")
		return
	}

	adminID := auth.AdminID(r.Context())
	if err := h.adminStore.UpdatePassword(adminID, hash); err != nil {
		h.logger.Error("update password", "admin_id", adminID, "error", err)
		h.renderSettings(w, r, http.StatusInternalServerError, "Failed to update password", "")
		return
	}

	// Every other signed-in browser has to sign in again with the new
	// password; this one gets a fresh session.
	if err := h.sessionStore.DeleteByAdmin(adminID); err != nil {
		h.logger.Error("revoke sessions", "admin_id", adminID, "error", err)
		h.renderSettings(w, r, http.StatusInternalServerError, "Password updated, but other sessions could not be signed out", "")
		return
	}
	sess, err := h.sessionStore.Create(adminID)
	if err != nil {
		h.logger.Error("create session", "admin_id", adminID, "error", err)
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	h.setSessionCookie(w, sess)

	h.logger.Info("admin password changed", "admin_id", adminID)
	h.renderSettings(w, r, http.StatusOK, "", "Password updated")
}

func (h *AdminHandler) renderSettings(w http.ResponseWriter, r *http.Request, status int, errMsg, notice string) {
	ac, _ := auth.FromContext(r.Context())
	render(w, h.templates, status, "admin_settings.html", map[string]any{
		"Title":  "Settings",
		"Email":  ac.Email,
		"Error":  errMsg,
		"Notice": notice,
	}, h.logger)
}
