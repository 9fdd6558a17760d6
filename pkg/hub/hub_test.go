package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eyeonidea/contentd/pkg/config"
)

var testSite = config.SiteConfig{Name: "eoi", HubPassword: "s3cret"}

func newHub(t *testing.T) (*Hub, *SQLiteStore) {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "hub_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, config.HubConfig{SessionTTL: time.Hour, CookieName: "hub_session"}), store
}

func TestLogin(t *testing.T) {
	h, _ := newHub(t)
	ctx := context.Background()

	if _, err := h.Login(ctx, testSite, ""); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
	if _, err := h.Login(ctx, testSite, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := h.Login(ctx, config.SiteConfig{Name: "open"}, "anything"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("site without password must reject logins, got %v", err)
	}

	sess, err := h.Login(ctx, testSite, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" || sess.Site != "eoi" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Errorf("ttl = %s, want 1h", got)
	}
}

func TestValidate(t *testing.T) {
	h, _ := newHub(t)
	ctx := context.Background()
	sess, err := h.Login(ctx, testSite, "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	got, err := h.Validate(ctx, "eoi", sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sess.ID {
		t.Errorf("unexpected session: %+v", got)
	}

	if _, err := h.Validate(ctx, "acme", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("foreign site: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := h.Validate(ctx, "eoi", "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown id: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := h.Validate(ctx, "eoi", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("empty id: expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateExpired(t *testing.T) {
	h, store := newHub(t)
	ctx := context.Background()
	sess, err := h.Login(ctx, testSite, "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	h.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := h.Validate(ctx, "eoi", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("expired session should be deleted")
	}
}

func TestLogoutAndRevoke(t *testing.T) {
	h, _ := newHub(t)
	ctx := context.Background()
	a, _ := h.Login(ctx, testSite, "s3cret")
	b, _ := h.Login(ctx, testSite, "s3cret")

	sessions, err := h.Sessions(ctx, "eoi")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := h.Logout(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Validate(ctx, "eoi", a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("logged out session should be gone")
	}

	if err := h.Revoke(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.Revoke(ctx, b.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second revoke, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	h, store := newHub(t)
	ctx := context.Background()
	h.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	if _, err := h.Login(ctx, testSite, "s3cret"); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned session, got %d", n)
	}
}

func guarded(h *Hub) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, found := FromContext(r.Context()); !found && r.URL.Path != LoginPath {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return h.RequireSession(func(*http.Request) string { return "eoi" })(ok)
}

func TestRequireSessionRedirectsPages(t *testing.T) {
	h, _ := newHub(t)
	req := httptest.NewRequest(http.MethodGet, "/client-hub/email/setup?tab=imap", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()

	guarded(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/client-hub/login?redirect=%2Fclient-hub%2Femail%2Fsetup%3Ftab%3Dimap" {
		t.Errorf("unexpected location: %s", loc)
	}
}

func TestRequireSessionRejectsAPI(t *testing.T) {
	h, _ := newHub(t)
	req := httptest.NewRequest(http.MethodGet, "/api/client-hub/session", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	guarded(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "auth_error") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRequireSessionSkipsLogin(t *testing.T) {
	h, _ := newHub(t)
	req := httptest.NewRequest(http.MethodGet, LoginPath, nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	guarded(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("login page must not be guarded, got %d", rec.Code)
	}
}

func TestRequireSessionAllowsCookie(t *testing.T) {
	h, _ := newHub(t)
	sess, err := h.Login(context.Background(), testSite, "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	login := httptest.NewRecorder()
	h.SetCookie(login, sess)
	cookies := login.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].Value != sess.ID {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/client-hub/session", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	guarded(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
