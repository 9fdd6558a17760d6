package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// newTestStore connects to the server named by CONTENTD_TEST_REDIS and
// skips otherwise.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("CONTENTD_TEST_REDIS")
	if addr == "" {
		t.Skip("CONTENTD_TEST_REDIS not set")
	}
	s, err := New(context.Background(), Options{Addr: addr, DB: 15, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.rdb.FlushDB(context.Background()).Err()
		_ = s.Close()
	})
	return s
}

func TestPayloadKey(t *testing.T) {
	if got := payloadKey("eoi", "news/"); got != "contentd:snapshot:eoi:/news" {
		t.Errorf("unexpected key: %s", got)
	}
}

func TestSitePattern(t *testing.T) {
	tests := []struct {
		site, want string
	}{
		{"eoi", "contentd:snapshot:eoi:*"},
		{"e*", `contentd:snapshot:e\*:*`},
		{"a?[b]", `contentd:snapshot:a\?\[b\]:*`},
	}
	for _, tt := range tests {
		if got := sitePattern(tt.site); got != tt.want {
			t.Errorf("sitePattern(%q) = %s, want %s", tt.site, got, tt.want)
		}
	}
}

func TestListKeepsSitesApart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, p := range []*snapshot.Payload{
		{Site: "eoi", Route: "/a", Data: map[string]json.RawMessage{"k": json.RawMessage("1")}},
		{Site: "eoi:b", Route: "/c", Data: map[string]json.RawMessage{"k": json.RawMessage("2")}},
	} {
		if err := s.Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx, "eoi")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Site != "eoi" || list[0].Route != "/a" {
		t.Errorf("eoi list = %+v", list)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[1].Site != "eoi:b" || all[1].Route != "/c" {
		t.Errorf("full list = %+v", all)
	}
}

func TestSaveLoadDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &snapshot.Payload{Site: "eoi", Route: "/news", Data: map[string]json.RawMessage{"sanity:abc": json.RawMessage(`7`)}}
	if err := s.Save(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "eoi", "/news/")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data["sanity:abc"]) != "7" {
		t.Errorf("unexpected data: %+v", got.Data)
	}

	list, err := s.List(ctx, "eoi")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Keys != 1 {
		t.Errorf("unexpected list: %+v", list)
	}

	if err := s.Delete(ctx, "eoi", "/news"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "eoi", "/news"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
