package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/eyeonidea/contentd/pkg/models"
)

// LoginPath is the hub's login page. It is never guarded.
const LoginPath = "/client-hub/login"

type ctxKey struct{}

// FromContext returns the session stored by RequireSession.
func FromContext(ctx context.Context) (models.HubSession, bool) {
	sess, ok := ctx.Value(ctxKey{}).(models.HubSession)
	return sess, ok
}

// RequireSession rejects requests without a live session for the site that
// siteOf resolves. Page requests are redirected to the login page, API
// requests get 401.
func (h *Hub) RequireSession(siteOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == LoginPath || r.URL.Path == "/api"+LoginPath {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := h.Validate(r.Context(), siteOf(r), h.SessionID(r))
			if err != nil {
				if wantsHTML(r) {
					target := LoginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
					http.Redirect(w, r, target, http.StatusFound)
					return
				}
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
		})
	}
}

func wantsHTML(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": "client hub login required",
			"type":    "auth_error",
			"code":    http.StatusUnauthorized,
		},
	})
}
