package prerender

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/diag"
	"github.com/eyeonidea/contentd/pkg/fetch"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

type stubBackend struct {
	calls atomic.Int32
}

func (b *stubBackend) Query(_ context.Context, query string, _ map[string]any) (json.RawMessage, error) {
	b.calls.Add(1)
	if strings.Contains(query, "broken") {
		return nil, errors.New("query error")
	}
	if strings.HasPrefix(query, "count") {
		return json.RawMessage("7"), nil
	}
	return json.RawMessage(`[{"title":"Hello"}]`), nil
}

func newCapturer(t *testing.T) (*Capturer, *snapshot.MemoryStore, *diag.Recorder) {
	t.Helper()
	store := snapshot.NewMemoryStore()
	rec := &diag.Recorder{}
	f := fetch.New(fetch.Config{Backend: &stubBackend{}, Diagnostics: rec})
	return New("eoi", f, store, 2), store, rec
}

func TestCapture(t *testing.T) {
	c, store, _ := newCapturer(t)
	page := config.PageConfig{
		Route: "/news/",
		Queries: []config.PageQuery{
			{Name: "count", Query: "count posts", Params: map[string]any{"postType": "news"}},
			{Name: "list", Query: "list posts"},
			{Name: "featured", Query: "featured post", Key: "featured-post"},
		},
	}

	res, err := c.Capture(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if res.Route != "/news" || res.Keys != 3 || res.Failed != 0 || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}

	p, err := store.Load(context.Background(), "eoi", "/news")
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Data["sanity:8ikfky"]) != "7" {
		t.Errorf("count key = %s", p.Data["sanity:8ikfky"])
	}
	if _, ok := p.Data["featured-post"]; !ok {
		t.Error("expected explicit key in payload")
	}
}

func TestCapturePartialFailure(t *testing.T) {
	c, store, rec := newCapturer(t)
	page := config.PageConfig{
		Route: "/",
		Queries: []config.PageQuery{
			{Name: "ok", Query: "count posts"},
			{Name: "bad", Query: "broken query"},
		},
	}

	res, err := c.Capture(context.Background(), page)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Keys != 1 || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}
	if _, err := store.Load(context.Background(), "eoi", "/"); err != nil {
		t.Errorf("expected snapshot saved: %v", err)
	}
	if len(rec.Records()) != 1 {
		t.Errorf("expected 1 diagnostic, got %d", len(rec.Records()))
	}
}

func TestCaptureAllFailedKeepsPrevious(t *testing.T) {
	c, store, _ := newCapturer(t)
	ctx := context.Background()
	prev := &snapshot.Payload{Site: "eoi", Route: "/about", Data: map[string]json.RawMessage{"k": json.RawMessage("1")}}
	if err := store.Save(ctx, prev); err != nil {
		t.Fatal(err)
	}

	res, err := c.Capture(ctx, config.PageConfig{
		Route:   "/about",
		Queries: []config.PageQuery{{Name: "bad", Query: "broken"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("expected capture to be skipped")
	}
	p, err := store.Load(ctx, "eoi", "/about")
	if err != nil {
		t.Fatal(err)
	}
	if string(p.Data["k"]) != "1" {
		t.Error("previous snapshot was replaced")
	}
}

func TestCaptureAll(t *testing.T) {
	c, store, _ := newCapturer(t)
	pages := []config.PageConfig{
		{Route: "/", Queries: []config.PageQuery{{Name: "a", Query: "count a"}}},
		{Route: "/news", Queries: []config.PageQuery{{Name: "b", Query: "list b"}}},
	}

	results, err := c.CaptureAll(context.Background(), pages)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	list, _ := store.List(context.Background(), "eoi")
	if len(list) != 2 {
		t.Errorf("expected 2 stored snapshots, got %d", len(list))
	}
}

func TestCaptureCancelled(t *testing.T) {
	c, _, _ := newCapturer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Capture(ctx, config.PageConfig{
		Route:   "/",
		Queries: []config.PageQuery{{Name: "a", Query: "count a"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
