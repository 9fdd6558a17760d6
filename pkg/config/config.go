package config

import (
	"fmt"
	"os"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all contentd configuration.
type Config struct {
	Listen      string                   `yaml:"listen"`
	DBPath      string                   `yaml:"db_path"`
	Sites       []SiteConfig             `yaml:"sites"`
	Fetch       FetchConfig              `yaml:"fetch"`
	Cache       CacheConfig              `yaml:"cache"`
	Snapshot    SnapshotConfig           `yaml:"snapshot"`
	Diagnostics models.DiagnosticsConfig `yaml:"diagnostics"`
	Contact     ContactConfig            `yaml:"contact"`
	Hub         HubConfig                `yaml:"hub"`
	CORS        CORSConfig               `yaml:"cors"`
}

// SiteConfig is one tenant served by this process.
type SiteConfig struct {
	Name        string       `yaml:"name"`
	Hosts       []string     `yaml:"hosts"`
	Sanity      SanityConfig `yaml:"sanity"`
	Pages       []PageConfig `yaml:"pages"`
	HubPassword string       `yaml:"hub_password"`
}

// SanityConfig points a site at its content backend project.
type SanityConfig struct {
	ProjectID  string        `yaml:"project_id"`
	Dataset    string        `yaml:"dataset"`
	APIVersion string        `yaml:"api_version"`
	Token      string        `yaml:"token"`
	UseCDN     bool          `yaml:"use_cdn"`
	Timeout    time.Duration `yaml:"timeout"`
	// BaseURL overrides the derived API host (tests, self-hosted gateways).
	BaseURL string `yaml:"base_url"`
}

// PageConfig lists the queries a route needs at render time.
type PageConfig struct {
	Route   string      `yaml:"route"`
	Queries []PageQuery `yaml:"queries"`
}

// PageQuery is a single named query captured into a route's snapshot.
type PageQuery struct {
	Name   string         `yaml:"name"`
	Query  string         `yaml:"query"`
	Params map[string]any `yaml:"params"`
	Key    string         `yaml:"key"`
}

// FetchConfig controls key derivation and the retry budget of the fetcher.
type FetchConfig struct {
	Namespace            string        `yaml:"namespace"`
	SnapshotAttempts     int           `yaml:"snapshot_attempts"`
	SnapshotDelay        time.Duration `yaml:"snapshot_delay"`
	APIAttempts          int           `yaml:"api_attempts"`
	APIDelay             time.Duration `yaml:"api_delay"`
	PrerenderConcurrency int           `yaml:"prerender_concurrency"`
}

// CacheConfig controls the server-side query result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// SnapshotConfig selects where snapshot payloads are stored.
// Driver is "sqlite" (default), "redis" or "memory".
type SnapshotConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for the redis snapshot driver.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ContactConfig controls the contact form relay.
type ContactConfig struct {
	Enabled  bool                    `yaml:"enabled"`
	APIKey   string                  `yaml:"api_key"`
	Endpoint string                  `yaml:"endpoint"`
	To       string                  `yaml:"to"`
	From     string                  `yaml:"from"`
	Throttle []models.ThrottlePolicy `yaml:"throttle"`
}

// HubConfig controls client hub sessions.
type HubConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
	CookieName string        `yaml:"cookie_name"`
	Secure     bool          `yaml:"secure"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "contentd.db",
		Fetch: FetchConfig{
			Namespace:            "sanity",
			SnapshotAttempts:     2,
			SnapshotDelay:        150 * time.Millisecond,
			APIAttempts:          2,
			APIDelay:             250 * time.Millisecond,
			PrerenderConcurrency: 4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Driver: "sqlite",
		},
		Diagnostics: models.DiagnosticsConfig{
			Enabled:       true,
			RetentionDays: 30,
			MaxErrorSize:  4096,
		},
		Contact: ContactConfig{
			Endpoint: "https://api.resend.com/emails",
		},
		Hub: HubConfig{
			SessionTTL: 7 * 24 * time.Hour,
			CookieName: "hub_session",
			Secure:     true,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i := range cfg.Sites {
		if cfg.Sites[i].Sanity.APIVersion == "" {
			cfg.Sites[i].Sanity.APIVersion = "2024-01-01"
		}
	}
	if cfg.Diagnostics.DBPath == "" {
		cfg.Diagnostics.DBPath = cfg.DBPath
	}

	return cfg, nil
}

// validSiteName limits site names to characters that are safe inside
// storage keys and scan patterns.
func validSiteName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return name != ""
}

var validSnapshotDrivers = map[string]bool{
	"sqlite": true,
	"redis":  true,
	"memory": true,
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}
	seen := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		if s.Name == "" {
			return fmt.Errorf("site name is required")
		}
		if !validSiteName(s.Name) {
			return fmt.Errorf("invalid site name %q: use letters, digits, '-', '_' or '.'", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate site %q", s.Name)
		}
		seen[s.Name] = true
		if s.Sanity.BaseURL == "" && s.Sanity.ProjectID == "" {
			return fmt.Errorf("site %q: sanity.project_id is required", s.Name)
		}
		if s.Sanity.Dataset == "" {
			return fmt.Errorf("site %q: sanity.dataset is required", s.Name)
		}
	}
	if !validSnapshotDrivers[c.Snapshot.Driver] {
		return fmt.Errorf("invalid snapshot driver %q: must be one of sqlite, redis, memory", c.Snapshot.Driver)
	}
	if c.Snapshot.Driver == "redis" && c.Snapshot.Redis.Addr == "" {
		return fmt.Errorf("snapshot.redis.addr is required for the redis driver")
	}
	if c.Fetch.SnapshotAttempts < 1 || c.Fetch.APIAttempts < 1 {
		return fmt.Errorf("fetch attempts must be at least 1")
	}
	if c.Contact.Enabled && (c.Contact.APIKey == "" || c.Contact.To == "" || c.Contact.From == "") {
		return fmt.Errorf("contact: api_key, to and from are required when enabled")
	}
	return nil
}

// Site returns the named site.
func (c *Config) Site(name string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return SiteConfig{}, false
}
