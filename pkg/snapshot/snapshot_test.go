package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"":               "/",
		"/":              "/",
		"news":           "/news",
		"/news/":         "/news",
		"/news?page=2":   "/news",
		"/news/#top":     "/news",
		"/about/legal//": "/about/legal",
	}
	for in, want := range tests {
		if got := NormalizeRoute(in); got != want {
			t.Errorf("NormalizeRoute(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Load(ctx, "eoi", "/news"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := &Payload{Site: "eoi", Route: "/news/", Data: map[string]json.RawMessage{"sanity:abc": json.RawMessage("7")}}
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "eoi", "/news")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data["sanity:abc"]) != "7" {
		t.Errorf("unexpected data: %s", got.Data["sanity:abc"])
	}
	if got.Route != "/news" || got.CreatedAt.IsZero() {
		t.Errorf("expected normalized route and timestamp, got %+v", got)
	}

	// Loaded payloads are copies.
	got.Data["sanity:other"] = json.RawMessage("1")
	again, _ := s.Load(ctx, "eoi", "/news")
	if _, ok := again.Data["sanity:other"]; ok {
		t.Error("mutating a loaded payload leaked into the store")
	}

	if _, err := s.Load(ctx, "acme", "/news"); !errors.Is(err, ErrNotFound) {
		t.Errorf("sites must not share payloads, got %v", err)
	}

	_ = s.Save(ctx, &Payload{Site: "acme", Route: "/", Data: map[string]json.RawMessage{}})
	list, _ := s.List(ctx, "")
	if len(list) != 2 || list[0].Site != "acme" || list[1].Keys != 1 {
		t.Errorf("unexpected list: %+v", list)
	}
	list, _ = s.List(ctx, "eoi")
	if len(list) != 1 {
		t.Errorf("expected 1 eoi payload, got %d", len(list))
	}

	if err := s.Delete(ctx, "eoi", "news"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "eoi", "/news"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payload" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("route") {
		case "/news":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"site":"eoi","route":"/news","data":{"sanity:abc":7}}`))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", nil)
	ctx := context.Background()

	p, err := src.Load(ctx, "eoi", "news/")
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Data["sanity:abc"]) != "7" {
		t.Errorf("unexpected payload: %+v", p)
	}

	if _, err := src.Load(ctx, "eoi", "/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.Load(ctx, "eoi", "/broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected a transport error, got %v", err)
	}
}
