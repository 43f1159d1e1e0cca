package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foresafe/foresafe/internal/auth"
	"github.com/foresafe/foresafe/internal/database"
	"github.com/foresafe/foresafe/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.SessionStore, *store.AdminStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewAdminStore(db)
}

func TestRequireAdminNoCookie(t *testing.T) {
	ss, as := setupAuthMiddlewareDB(t)

	handler := RequireAdmin(ss, as)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login" {
		t.Errorf("Location = %q, want %q", loc, "/admin/login")
	}
}

func TestRequireAdminInvalidToken(t *testing.T) {
	ss, as := setupAuthMiddlewareDB(t)

	handler := RequireAdmin(ss, as)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func TestRequireAdminPostUnauthorized(t *testing.T) {
	ss, as := setupAuthMiddlewareDB(t)

	handler := RequireAdmin(ss, as)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("POST", "/admin/tags/import", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdminValidSession(t *testing.T) {
	ss, as := setupAuthMiddlewareDB(t)

	a, _ := as.Create("admin@foresafe.in", "hash")
	sess, _ := ss.Create(a.ID)

	var gotAC auth.AuthContext
	handler := RequireAdmin(ss, as)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.AdminID != a.ID {
		t.Errorf("AdminID = %d, want %d", gotAC.AdminID, a.ID)
	}
	if gotAC.Email != "admin@foresafe.in" {
		t.Errorf("Email = %q", gotAC.Email)
	}
	if gotAC.SessionID != sess.ID {
		t.Errorf("SessionID = %d, want %d", gotAC.SessionID, sess.ID)
	}
}
