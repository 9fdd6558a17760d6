package router

import (
	"fmt"
	"net"
	"strings"

	"github.com/eyeonidea/contentd/pkg/config"
)

// Router resolves request hosts to configured sites.
type Router struct {
	cfg *config.Config
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg}
}

// Resolve returns the site serving host. The port is ignored and hosts match
// case-insensitively. Unknown hosts are served by the first configured site.
func (r *Router) Resolve(host string) (config.SiteConfig, error) {
	if len(r.cfg.Sites) == 0 {
		return config.SiteConfig{}, fmt.Errorf("no sites configured")
	}

	host = normalizeHost(host)
	for _, site := range r.cfg.Sites {
		for _, h := range site.Hosts {
			if normalizeHost(h) == host {
				return site, nil
			}
		}
	}

	// No matching host, fall back to the first site.
	return r.cfg.Sites[0], nil
}

// Site returns the site called name. An empty name resolves to the first site.
func (r *Router) Site(name string) (config.SiteConfig, error) {
	if name == "" {
		if len(r.cfg.Sites) == 0 {
			return config.SiteConfig{}, fmt.Errorf("no sites configured")
		}
		return r.cfg.Sites[0], nil
	}
	site, ok := r.cfg.Site(name)
	if !ok {
		return config.SiteConfig{}, fmt.Errorf("unknown site %q", name)
	}
	return site, nil
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
