package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eyeonidea/contentd/pkg/contact"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/hub"
	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/posts"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	site := siteFromContext(r.Context())
	backend, err := s.backendFor(site)
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	result, err := backend.Query(r.Context(), req.Query, req.Params)
	if err != nil {
		log.Printf("query %s failed: %v", site.Name, err)
		writeJSONError(w, http.StatusBadGateway, "content backend request failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(result)
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSONError(w, http.StatusNotFound, "snapshots are not enabled")
		return
	}
	route := r.URL.Query().Get("route")
	if route == "" {
		writeJSONError(w, http.StatusBadRequest, "route is required")
		return
	}

	site := siteFromContext(r.Context())
	p, err := s.snapshots.Load(r.Context(), site.Name, route)
	if errors.Is(err, snapshot.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "no payload for "+snapshot.NormalizeRoute(route))
		return
	}
	if err != nil {
		log.Printf("payload %s%s: %v", site.Name, route, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load payload")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) postsFor(w http.ResponseWriter, r *http.Request) (*posts.Posts, *fetch.Scope, bool) {
	site := siteFromContext(r.Context())
	p, ok := s.posts[site.Name]
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no content backend for site "+site.Name)
		return nil, nil, false
	}
	return p, fetch.NewServerScope(site.Name, r.URL.Path), true
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func (s *Server) handlePostsList(w http.ResponseWriter, r *http.Request) {
	p, scope, ok := s.postsFor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	lp := posts.ListParams{
		Limit:        intParam(r, "limit"),
		Offset:       intParam(r, "offset"),
		FeaturedOnly: q.Get("featured") == "true",
		Search:       q.Get("q"),
	}
	if t := q.Get("type"); t != "" {
		pt, ok := posts.ParseType(t)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown post type "+strconv.Quote(t))
			return
		}
		lp.PostType = pt
	}

	list, _ := p.List(r.Context(), scope, lp).Value()
	total, _ := p.Count(r.Context(), scope, lp.PostType, lp.Search).Value()
	if list == nil {
		list = []models.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": list,
		"total": total,
	})
}

func (s *Server) handlePostTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, posts.Types())
}

func (s *Server) handleFeaturedPost(w http.ResponseWriter, r *http.Request) {
	p, scope, ok := s.postsFor(w, r)
	if !ok {
		return
	}
	post, found := p.Featured(r.Context(), scope).Value()
	if !found || post == nil {
		writeJSONError(w, http.StatusNotFound, "no featured post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	p, scope, ok := s.postsFor(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	post, found := p.BySlug(r.Context(), scope, slug).Value()
	if !found || post == nil {
		writeJSONError(w, http.StatusNotFound, "post not found")
		return
	}
	related, _ := p.RecentExcluding(r.Context(), scope, post.ID, 3).Value()
	if related == nil {
		related = []models.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post":    post,
		"related": related,
	})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var msg models.ContactMessage
	if !decodeBody(w, r, &msg) {
		return
	}
	if s.relay == nil {
		writeJSONError(w, http.StatusInternalServerError, contact.ErrNotConfigured.Error())
		return
	}

	site := siteFromContext(r.Context())
	err := s.relay.Submit(r.Context(), site.Name, msg)
	var sendErr *contact.SendError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, contact.ErrMissingFields):
		writeJSONError(w, http.StatusBadRequest, "Please fill in name, email and message.")
	case errors.Is(err, contact.ErrNotConfigured):
		writeJSONError(w, http.StatusInternalServerError, "Email service is not fully configured.")
	case errors.Is(err, contact.ErrThrottled):
		writeJSONError(w, http.StatusTooManyRequests, "Too many messages, please try again later.")
	case errors.As(err, &sendErr):
		log.Printf("contact %s: %v", site.Name, err)
		writeJSONError(w, http.StatusBadGateway, "Failed to send email.")
	default:
		log.Printf("contact %s: %v", site.Name, err)
		writeJSONError(w, http.StatusInternalServerError, "contact submission failed")
	}
}

func (s *Server) handleHubLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	sess, err := s.hub.Login(r.Context(), siteFromContext(r.Context()), body.Password)
	switch {
	case errors.Is(err, hub.ErrPasswordRequired):
		writeJSONError(w, http.StatusBadRequest, "Password is required")
		return
	case errors.Is(err, hub.ErrInvalidPassword):
		writeJSONError(w, http.StatusUnauthorized, "Invalid password")
		return
	case err != nil:
		log.Printf("hub login: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.hub.SetCookie(w, sess)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHubLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Logout(r.Context(), s.hub.SessionID(r)); err != nil {
		log.Printf("hub logout: %v", err)
	}
	s.hub.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHubSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := hub.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"loggedIn": true,
		"session":  sess,
	})
}
