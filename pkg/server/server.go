// Package server exposes contentd over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/contact"
	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/hub"
	"github.com/eyeonidea/contentd/pkg/posts"
	"github.com/eyeonidea/contentd/pkg/router"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// SiteHeader names the site explicitly, overriding host resolution.
const SiteHeader = "X-Contentd-Site"

// Deps are the collaborators of a Server. Backends maps site names to the
// content backend serving them; Relay and Hub are optional.
type Deps struct {
	Backends    map[string]fetch.Backend
	Snapshots   snapshot.Source
	Diagnostics diag.Sink
	Relay       *contact.Relay
	Hub         *hub.Hub
}

// Server is the contentd HTTP server.
type Server struct {
	cfg       *config.Config
	router    *router.Router
	backends  map[string]fetch.Backend
	posts     map[string]*posts.Posts
	snapshots snapshot.Source
	relay     *contact.Relay
	hub       *hub.Hub
	mux       chi.Router
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		router:    router.New(cfg),
		backends:  deps.Backends,
		posts:     make(map[string]*posts.Posts, len(deps.Backends)),
		snapshots: deps.Snapshots,
		relay:     deps.Relay,
		hub:       deps.Hub,
	}
	for name, b := range deps.Backends {
		f := fetch.New(fetch.Config{
			Backend:     b,
			Diagnostics: deps.Diagnostics,
			Namespace:   cfg.Fetch.Namespace,
		})
		s.posts[name] = posts.New(f)
	}
	s.mux = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SiteHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.resolveSite)

		r.Post("/sanity/query", s.handleQuery)
		r.Get("/payload", s.handlePayload)

		r.Get("/posts", s.handlePostsList)
		r.Get("/posts/types", s.handlePostTypes)
		r.Get("/posts/featured", s.handleFeaturedPost)
		r.Get("/posts/{slug}", s.handlePost)

		r.Post("/contact", s.handleContact)

		if s.hub != nil {
			r.Post("/client-hub/login", s.handleHubLogin)
			r.Post("/client-hub/logout", s.handleHubLogout)
			r.With(s.hub.RequireSession(func(r *http.Request) string {
				return siteFromContext(r.Context()).Name
			})).Get("/client-hub/session", s.handleHubSession)
		}
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("contentd listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type siteKey struct{}

func siteFromContext(ctx context.Context) config.SiteConfig {
	site, _ := ctx.Value(siteKey{}).(config.SiteConfig)
	return site
}

// resolveSite picks the site from the site query parameter, the site header
// or the request host, in that order.
func (s *Server) resolveSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("site")
		if name == "" {
			name = r.Header.Get(SiteHeader)
		}

		var site config.SiteConfig
		var err error
		if name != "" {
			site, err = s.router.Site(name)
		} else {
			site, err = s.router.Resolve(r.Host)
		}
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), siteKey{}, site)))
	})
}

func (s *Server) backendFor(site config.SiteConfig) (fetch.Backend, error) {
	b, ok := s.backends[site.Name]
	if !ok {
		return nil, fmt.Errorf("no content backend for site %q", site.Name)
	}
	return b, nil
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"contentd_error","code":%d}}`, message, code)
}
