package diag

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
)

func tempCfg(t *testing.T) models.DiagnosticsConfig {
	t.Helper()
	return models.DiagnosticsConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "diag_test.db"),
		RetentionDays: 30,
		MaxErrorSize:  1024,
	}
}

func mustNew(t *testing.T, cfg models.DiagnosticsConfig) *Store {
	t.Helper()
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord() models.DiagnosticRecord {
	return models.DiagnosticRecord{
		Code:      models.CodeAPIFetchFailed,
		Key:       "sanity:8ikfky",
		Site:      "eoi",
		Route:     "/news",
		Error:     "status 503",
		CreatedAt: time.Now().UTC(),
	}
}

func TestRecordAndQuery(t *testing.T) {
	s := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := s.Record(ctx, sampleRecord()); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := s.Query(ctx, models.DiagnosticQueryOpts{Code: models.CodeAPIFetchFailed})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if r.Key != "sanity:8ikfky" || r.Route != "/news" || r.Site != "eoi" || r.Error != "status 503" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestQueryFilters(t *testing.T) {
	s := mustNew(t, tempCfg(t))
	ctx := context.Background()

	a := sampleRecord()
	b := sampleRecord()
	b.Code = models.CodeFreshFetchFailed
	b.Key = "featured-post"
	b.Route = ""
	_ = s.Record(ctx, a)
	_ = s.Record(ctx, b)

	byKey, _ := s.Query(ctx, models.DiagnosticQueryOpts{Key: "featured-post"})
	if len(byKey) != 1 || byKey[0].Code != models.CodeFreshFetchFailed {
		t.Errorf("unexpected key filter result: %+v", byKey)
	}
	byRoute, _ := s.Query(ctx, models.DiagnosticQueryOpts{Route: "/news"})
	if len(byRoute) != 1 {
		t.Errorf("expected 1 record for /news, got %d", len(byRoute))
	}
	limited, _ := s.Query(ctx, models.DiagnosticQueryOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
	none, _ := s.Query(ctx, models.DiagnosticQueryOpts{Site: "acme"})
	if len(none) != 0 {
		t.Errorf("expected no acme records, got %d", len(none))
	}
}

func TestErrorTruncation(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxErrorSize = 16
	s := mustNew(t, cfg)
	ctx := context.Background()

	rec := sampleRecord()
	rec.Error = strings.Repeat("x", 100)
	if err := s.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	records, _ := s.Query(ctx, models.DiagnosticQueryOpts{})
	if len(records) != 1 || len(records[0].Error) != 16 {
		t.Fatalf("expected truncated error, got %+v", records)
	}
}

func TestStats(t *testing.T) {
	s := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = s.Record(ctx, sampleRecord())
	_ = s.Record(ctx, sampleRecord())
	fresh := sampleRecord()
	fresh.Code = models.CodeFreshFetchFailed
	_ = s.Record(ctx, fresh)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[models.DiagnosticCode]int{}
	for _, st := range stats {
		counts[st.Code] += st.Count
	}
	if counts[models.CodeAPIFetchFailed] != 2 || counts[models.CodeFreshFetchFailed] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCleanup(t *testing.T) {
	s := mustNew(t, tempCfg(t))
	ctx := context.Background()

	old := sampleRecord()
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	_ = s.Record(ctx, old)
	_ = s.Record(ctx, sampleRecord())

	n, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	records, _ := s.Query(ctx, models.DiagnosticQueryOpts{})
	if len(records) != 1 {
		t.Errorf("expected 1 remaining, got %d", len(records))
	}
}

func TestNilStoreRecord(t *testing.T) {
	var s *Store
	if err := s.Record(context.Background(), sampleRecord()); err != nil {
		t.Errorf("nil store should be a no-op, got %v", err)
	}
}

func TestMultiAndRecorder(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, nil, &b, LogSink{}}
	if err := m.Record(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if len(a.Records()) != 1 || len(b.Records()) != 1 {
		t.Errorf("expected both recorders to receive the record")
	}
}
