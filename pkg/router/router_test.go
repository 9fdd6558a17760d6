package router

import (
	"testing"

	"github.com/eyeonidea/contentd/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Sites: []config.SiteConfig{
			{Name: "eoi", Hosts: []string{"eyeonidea.com", "www.eyeonidea.com"}},
			{Name: "acme", Hosts: []string{"Acme.Example"}},
		},
	}
}

func TestResolveHost(t *testing.T) {
	r := New(testConfig())
	tests := []struct {
		host string
		want string
	}{
		{"eyeonidea.com", "eoi"},
		{"www.eyeonidea.com:443", "eoi"},
		{"ACME.example", "acme"},
		{"acme.example:8080", "acme"},
		{"acme.example.", "acme"},
		{"unknown.test", "eoi"},
		{"", "eoi"},
	}
	for _, tt := range tests {
		site, err := r.Resolve(tt.host)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.host, err)
		}
		if site.Name != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.host, site.Name, tt.want)
		}
	}
}

func TestResolveNoSites(t *testing.T) {
	r := New(&config.Config{})
	if _, err := r.Resolve("eyeonidea.com"); err == nil {
		t.Fatal("expected error with no sites")
	}
	if _, err := r.Site(""); err == nil {
		t.Fatal("expected error with no sites")
	}
}

func TestSiteByName(t *testing.T) {
	r := New(testConfig())

	site, err := r.Site("acme")
	if err != nil {
		t.Fatal(err)
	}
	if site.Name != "acme" {
		t.Errorf("unexpected site: %s", site.Name)
	}

	site, err = r.Site("")
	if err != nil {
		t.Fatal(err)
	}
	if site.Name != "eoi" {
		t.Errorf("expected default site, got %s", site.Name)
	}

	if _, err := r.Site("missing"); err == nil {
		t.Error("expected error for unknown site")
	}
}
