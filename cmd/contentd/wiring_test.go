package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eyeonidea/contentd/pkg/querykey"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"postType=news", "limit=3", "tags=[\"a\"]", "flag=true", "q=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if params["postType"] != "news" {
		t.Errorf("postType = %v", params["postType"])
	}
	if params["limit"] != float64(3) {
		t.Errorf("limit = %v (%T)", params["limit"], params["limit"])
	}
	if tags, ok := params["tags"].([]any); !ok || len(tags) != 1 {
		t.Errorf("tags = %v", params["tags"])
	}
	if params["flag"] != true {
		t.Errorf("flag = %v", params["flag"])
	}
	if params["q"] != "a=b" {
		t.Errorf("q = %v", params["q"])
	}

	key, err := querykey.Make(querykey.DefaultNamespace, "count posts", mustParams(t, "postType=news"))
	if err != nil {
		t.Fatal(err)
	}
	if key != "sanity:8ikfky" {
		t.Errorf("key = %s, want sanity:8ikfky", key)
	}
}

func TestParseParamsInvalid(t *testing.T) {
	for _, in := range []string{"novalue", "=x"} {
		if _, err := parseParams([]string{in}); err == nil {
			t.Errorf("parseParams(%q): expected error", in)
		}
	}
}

func mustParams(t *testing.T, pairs ...string) map[string]any {
	t.Helper()
	p, err := parseParams(pairs)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contentd.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for config without sites")
	}

	cfgYAML := `
db_path: ` + filepath.Join(dir, "test.db") + `
snapshot:
  driver: memory
sites:
  - name: main
    sanity:
      project_id: abc123
      dataset: production
`
	if err := os.WriteFile(path, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	site, err := siteOrDefault(cfg, "")
	if err != nil || site.Name != "main" {
		t.Errorf("siteOrDefault = %v, %v", site.Name, err)
	}
	if _, err := siteOrDefault(cfg, "other"); err == nil {
		t.Error("expected error for unknown site")
	}

	backends := siteBackends(cfg, nil)
	if _, ok := backends["main"]; !ok {
		t.Error("expected backend for main")
	}
}
