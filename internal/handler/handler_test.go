package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/foresafe/foresafe/internal/auth"
	"github.com/foresafe/foresafe/internal/database"
	"github.com/foresafe/foresafe/internal/devicelink"
	"github.com/foresafe/foresafe/internal/dispatch"
	"github.com/foresafe/foresafe/internal/importer"
	"github.com/foresafe/foresafe/internal/onesignal"
	"github.com/foresafe/foresafe/internal/qrbatch"
	"github.com/foresafe/foresafe/internal/registration"
	"github.com/foresafe/foresafe/internal/store"
	"github.com/foresafe/foresafe/internal/validation"
	"github.com/foresafe/foresafe/internal/web"
	"github.com/foresafe/foresafe/internal/websocket"
)

const testPublicURL = "https://foresafe.test"

type recordingHub struct {
	mu   sync.Mutex
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func (h *recordingHub) types() []websocket.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]websocket.EventType, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = m.Type
	}
	return out
}

// pushAPI fakes the OneSignal REST API, recording each call.
type pushAPI struct {
	mu       sync.Mutex
	calls    []string
	bodies   []map[string]any
	failWith int
}

func (p *pushAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.calls = append(p.calls, r.Method+" "+r.URL.Path)
	p.bodies = append(p.bodies, body)
	fail := p.failWith
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail != 0 {
		w.WriteHeader(fail)
		w.Write([]byte(`{"errors":["All included players are not subscribed"]}`))
		return
	}
	if r.URL.Path == "/notifications" {
		w.Write([]byte(`{"id":"notif-1"}`))
		return
	}
	w.Write([]byte(`{}`))
}

func (p *pushAPI) lastCall() (string, map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return "", nil
	}
	return p.calls[len(p.calls)-1], p.bodies[len(p.bodies)-1]
}

func (p *pushAPI) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type testEnv struct {
	tags      *store.TagStore
	admins    *store.AdminStore
	sessions  *store.SessionStore
	hub       *recordingHub
	push      *pushAPI
	exporter  *qrbatch.Exporter
	scan      *ScanHandler
	register  *RegisterHandler
	alert     *AlertHandler
	device    *DeviceHandler
	admin     *AdminHandler
	inventory *InventoryHandler
	router    chi.Router
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tmpl, err := web.Parse()
	require.NoError(t, err)

	api := &pushAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validation.New()
	hub := &recordingHub{}
	tags := store.NewTagStore(db)
	admins := store.NewAdminStore(db)
	sessions := store.NewSessionStore(db)
	client := onesignal.NewClient("app-1", "rest-key", srv.URL)

	exporter := qrbatch.NewExporter(tags, qrbatch.PNGEncoder{}, qrbatch.Config{BaseURL: testPublicURL, Size: 64, MaxTags: 5}, logger)

	env := &testEnv{
		tags:      tags,
		admins:    admins,
		sessions:  sessions,
		hub:       hub,
		push:      api,
		exporter:  exporter,
		scan:      NewScanHandler(tags, tmpl, logger),
		register:  NewRegisterHandler(registration.NewService(tags, "+91", logger), tags, hub, testPublicURL, "+91", tmpl, logger),
		alert:     NewAlertHandler(dispatch.NewDispatcher(tags, client, logger), v, hub, logger),
		device:    NewDeviceHandler(devicelink.NewLinker(tags, client, "FS-", logger), v, hub, logger),
		admin:     NewAdminHandler(admins, sessions, tags, v, false, tmpl, logger),
		inventory: NewInventoryHandler(tags, importer.New(tags, logger), exporter, qrbatch.NewPublisher(exporter, qrbatch.S3Config{}), hub, tmpl, logger),
	}

	r := chi.NewRouter()
	r.Get("/", env.scan.Home)
	r.Get("/s/{tagId}", env.scan.Scan)
	r.Get("/register", env.register.Form)
	r.Post("/register", env.register.Submit)
	r.Get("/register/success", env.register.Success)
	r.Post("/api/send-alert", env.alert.SendAlert)
	r.Post("/api/devices/link", env.device.Link)
	r.Put("/api/devices/push", env.device.SetPush)
	r.Post("/api/devices/unlink", env.device.Unlink)
	r.Get("/admin/login", env.admin.LoginPage)
	r.Post("/admin/login", env.admin.Login)
	env.router = r

	return env
}

// seed inserts ids and registers the ones given in registered.
func (e *testEnv) seed(t *testing.T, ids []string, registered map[string]string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		_, err := e.tags.Insert(ctx, id)
		require.NoError(t, err)
	}
	for id, number := range registered {
		ok, err := e.tags.Register(ctx, id, number, nil)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, target, "application/json", body)
}

// asAdmin attaches an admin identity the way RequireAdmin would.
func asAdmin(r *http.Request, adminID, sessionID int64, email string) *http.Request {
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{AdminID: adminID, Email: email, SessionID: sessionID})
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}
