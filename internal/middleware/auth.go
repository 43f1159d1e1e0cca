package middleware

import (
	"net/http"

	"github.com/foresafe/foresafe/internal/auth"
	"github.com/foresafe/foresafe/internal/store"
)

// SessionCookieName is the admin console session cookie.
const SessionCookieName = "foresafe_session"

const loginPath = "/admin/login"

// RequireAdmin validates the session cookie and populates AuthContext.
// Unauthenticated requests are redirected to the admin login page.
func RequireAdmin(sessionStore *store.SessionStore, adminStore *store.AdminStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				redirectToLogin(w, r)
				return
			}

			admin, err := adminStore.GetByID(sess.AdminID)
			if err != nil || admin == nil {
				redirectToLogin(w, r)
				return
			}

			ac := auth.AuthContext{
				AdminID:   admin.ID,
				Email:     admin.Email,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
