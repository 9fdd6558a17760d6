// Package hub gates the client hub behind a per-site shared password.
package hub

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/models"
)

var (
	// ErrPasswordRequired is returned by Login when no password was given.
	ErrPasswordRequired = errors.New("password is required")
	// ErrInvalidPassword is returned by Login when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
	ErrSessionNotFound = errors.New("session not found")
)

// Hub issues and validates client hub sessions.
type Hub struct {
	store      Store
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// New creates a Hub on top of store.
func New(store Store, cfg config.HubConfig) *Hub {
	h := &Hub{
		store:      store,
		ttl:        cfg.SessionTTL,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		now:        time.Now,
	}
	if h.ttl <= 0 {
		h.ttl = 7 * 24 * time.Hour
	}
	if h.cookieName == "" {
		h.cookieName = "hub_session"
	}
	return h
}

// Login checks password against the site's hub password and opens a session.
func (h *Hub) Login(ctx context.Context, site config.SiteConfig, password string) (models.HubSession, error) {
	if password == "" {
		return models.HubSession{}, ErrPasswordRequired
	}
	if site.HubPassword == "" || subtle.ConstantTimeCompare([]byte(password), []byte(site.HubPassword)) != 1 {
		return models.HubSession{}, ErrInvalidPassword
	}

	now := h.now().UTC()
	if n, err := h.store.DeleteExpired(ctx, now); err != nil {
		log.Printf("hub: prune sessions: %v", err)
	} else if n > 0 {
		log.Printf("hub: pruned %d expired sessions", n)
	}

	sess := models.HubSession{
		ID:        uuid.NewString(),
		Site:      site.Name,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(h.ttl),
	}
	if err := h.store.Create(ctx, sess); err != nil {
		return models.HubSession{}, fmt.Errorf("login: %w", err)
	}
	return sess, nil
}

// Validate returns the live session id for site.
func (h *Hub) Validate(ctx context.Context, site, id string) (models.HubSession, error) {
	if id == "" {
		return models.HubSession{}, ErrSessionNotFound
	}
	sess, err := h.store.Get(ctx, id)
	if err != nil {
		return models.HubSession{}, err
	}
	now := h.now().UTC()
	if sess.Expired(now) {
		if err := h.store.Delete(ctx, id); err != nil {
			log.Printf("hub: delete expired session: %v", err)
		}
		return models.HubSession{}, ErrSessionNotFound
	}
	if sess.Site != site {
		return models.HubSession{}, ErrSessionNotFound
	}
	if err := h.store.Touch(ctx, id, now); err != nil {
		log.Printf("hub: touch session: %v", err)
	}
	sess.LastSeen = now
	return sess, nil
}

// Logout ends the session id.
func (h *Hub) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return h.store.Delete(ctx, id)
}

// Sessions lists sessions, optionally for one site.
func (h *Hub) Sessions(ctx context.Context, site string) ([]models.HubSession, error) {
	return h.store.List(ctx, site)
}

// Revoke ends the session id, reporting ErrSessionNotFound if it does not exist.
func (h *Hub) Revoke(ctx context.Context, id string) error {
	if _, err := h.store.Get(ctx, id); err != nil {
		return err
	}
	return h.store.Delete(ctx, id)
}

// SetCookie writes the session cookie.
func (h *Hub) SetCookie(w http.ResponseWriter, sess models.HubSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (h *Hub) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID returns the session id carried by r, if any.
func (h *Hub) SessionID(r *http.Request) string {
	c, err := r.Cookie(h.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
