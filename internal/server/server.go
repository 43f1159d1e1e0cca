package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/foresafe/foresafe/internal/config"
	"github.com/foresafe/foresafe/internal/devicelink"
	"github.com/foresafe/foresafe/internal/dispatch"
	"github.com/foresafe/foresafe/internal/handler"
	"github.com/foresafe/foresafe/internal/importer"
	"github.com/foresafe/foresafe/internal/middleware"
	"github.com/foresafe/foresafe/internal/onesignal"
	"github.com/foresafe/foresafe/internal/qrbatch"
	"github.com/foresafe/foresafe/internal/registration"
	"github.com/foresafe/foresafe/internal/store"
	"github.com/foresafe/foresafe/internal/validation"
	"github.com/foresafe/foresafe/internal/web"
	ws "github.com/foresafe/foresafe/internal/websocket"
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	scanH          *handler.ScanHandler
	registerH      *handler.RegisterHandler
	alertH         *handler.AlertHandler
	deviceH        *handler.DeviceHandler
	adminH         *handler.AdminHandler
	inventoryH     *handler.InventoryHandler
	tagStore       *store.TagStore
	adminStore     *store.AdminStore
	sessionStore   *store.SessionStore
	allowedOrigins []string
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	tmpl, err := web.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	v := validation.New()

	tagStore := store.NewTagStore(db)
	adminStore := store.NewAdminStore(db)
	sessionStore := store.NewSessionStore(db)

	push := onesignal.NewClient(cfg.OneSignalAppID, cfg.OneSignalRESTKey, cfg.OneSignalAPIURL)
	if !push.Configured() {
		logger.Warn("onesignal credentials missing, alerts will fail")
	}

	regSvc := registration.NewService(tagStore, cfg.DefaultCountryCode, logger)
	dispatcher := dispatch.NewDispatcher(tagStore, push, logger)
	linker := devicelink.NewLinker(tagStore, push, cfg.TagPrefix, logger)
	im := importer.New(tagStore, logger)

	exporter := qrbatch.NewExporter(tagStore, qrbatch.PNGEncoder{Level: qrcode.Medium}, qrbatch.Config{
		BaseURL: cfg.PublicURL,
		Size:    cfg.QRSize,
		MaxTags: cfg.QRMaxTags,
	}, logger)
	publisher := qrbatch.NewPublisher(exporter, cfg.S3)

	return &Server{
		db:             db,
		hub:            hub,
		scanH:          handler.NewScanHandler(tagStore, tmpl, logger.With("component", "scan")),
		registerH:      handler.NewRegisterHandler(regSvc, tagStore, hub, cfg.PublicURL, cfg.DefaultCountryCode, tmpl, logger.With("component", "register")),
		alertH:         handler.NewAlertHandler(dispatcher, v, hub, logger.With("component", "alert")),
		deviceH:        handler.NewDeviceHandler(linker, v, hub, logger.With("component", "device")),
		adminH:         handler.NewAdminHandler(adminStore, sessionStore, tagStore, v, cfg.IsProduction(), tmpl, logger.With("component", "admin")),
		inventoryH:     handler.NewInventoryHandler(tagStore, im, exporter, publisher, hub, tmpl, logger.With("component", "inventory")),
		tagStore:       tagStore,
		adminStore:     adminStore,
		sessionStore:   sessionStore,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// AdminStore returns the admin store for account bootstrap.
func (s *Server) AdminStore() *store.AdminStore {
	return s.adminStore
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(middleware.Metrics)
	// Top level so preflights reach it before chi's 405 handling.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Public scan and registration pages
	r.Get("/", s.scanH.Home)
	r.Get("/s/{tagId}", s.scanH.Scan)
	r.Get("/register", s.registerH.Form)
	r.Post("/register", s.registerH.Submit)
	r.Get("/register/success", s.registerH.Success)

	// JSON API, also called by the companion app
	r.Post("/api/send-alert", s.alertH.SendAlert)
	r.Post("/api/devices/link", s.deviceH.Link)
	r.Put("/api/devices/push", s.deviceH.SetPush)
	r.Post("/api/devices/unlink", s.deviceH.Unlink)

	// Admin console
	r.Get("/admin/login", s.adminH.LoginPage)
	r.Post("/admin/login", s.adminH.Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.sessionStore, s.adminStore))
		r.Get("/admin", s.adminH.Dashboard)
		r.Post("/admin/logout", s.adminH.Logout)
		r.Get("/admin/settings", s.adminH.SettingsPage)
		r.Post("/admin/settings", s.adminH.ChangePassword)
		r.Get("/admin/tags", s.inventoryH.List)
		r.Post("/admin/tags/import", s.inventoryH.Import)
		r.Get("/admin/tags/qr.zip", s.inventoryH.ExportQR)
		r.Post("/admin/tags/qr/publish", s.inventoryH.PublishQR)
		r.Get("/admin/ws", ws.HandleWebSocket(s.hub, s.allowedOrigins, s.logger.With("component", "websocket")))
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check ping", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
