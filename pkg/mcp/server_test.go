package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

type fakeQuerier struct {
	result json.RawMessage
	err    error
	query  string
}

func (f *fakeQuerier) Query(_ context.Context, query string, _ map[string]any) (json.RawMessage, error) {
	f.query = query
	return f.result, f.err
}

type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats() (models.CacheStats, error) { return f.stats, nil }

type fakeDiag struct {
	records []models.DiagnosticRecord
	stats   []models.DiagnosticStat
	opts    models.DiagnosticQueryOpts
}

func (f *fakeDiag) Query(_ context.Context, opts models.DiagnosticQueryOpts) ([]models.DiagnosticRecord, error) {
	f.opts = opts
	return f.records, nil
}

func (f *fakeDiag) Stats(_ context.Context) ([]models.DiagnosticStat, error) { return f.stats, nil }

type fakeHub struct {
	sessions []models.HubSession
	site     string
}

func (f *fakeHub) Sessions(_ context.Context, site string) ([]models.HubSession, error) {
	f.site = site
	return f.sessions, nil
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name string, args any) ToolCallResult {
	t.Helper()
	rawArgs, _ := json.Marshal(args)
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: rawArgs})
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`3`),
		Method:  "tools/call",
		Params:  params,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatal("empty content")
	}
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "initialize",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	json.Unmarshal(data, &result)

	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "contentd" {
		t.Errorf("server name = %s, want contentd", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "test" {
		t.Errorf("server version = %s, want test", result.ServerInfo.Version)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`2`),
		Method:  "tools/list",
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	json.Unmarshal(data, &result)

	if len(result.Tools) != len(toolHandlers) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(toolHandlers))
	}
	for _, tool := range result.Tools {
		if _, ok := toolHandlers[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
	}
}

func TestToolCallQueryKey(t *testing.T) {
	srv := New(Deps{}, "test")
	result := callTool(t, srv, "contentd_query_key", map[string]any{
		"query":  "count posts",
		"params": map[string]any{"postType": "news"},
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if got := result.Content[0].Text; got != "sanity:8ikfky" {
		t.Errorf("key = %s, want sanity:8ikfky", got)
	}
}

func TestToolCallQueryKeyMissingQuery(t *testing.T) {
	srv := New(Deps{}, "test")
	result := callTool(t, srv, "contentd_query_key", map[string]any{})
	if !result.IsError {
		t.Error("expected isError=true")
	}
}

func TestToolCallQuery(t *testing.T) {
	q := &fakeQuerier{result: json.RawMessage(`{"n":7}`)}
	srv := New(Deps{Backends: map[string]Querier{"main": q}, DefaultSite: "main"}, "test")

	result := callTool(t, srv, "contentd_query", map[string]any{"query": "count(*)"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if q.query != "count(*)" {
		t.Errorf("query = %q", q.query)
	}
	if !strings.Contains(result.Content[0].Text, `"n": 7`) {
		t.Errorf("expected indented result, got: %s", result.Content[0].Text)
	}
}

func TestToolCallQueryErrors(t *testing.T) {
	q := &fakeQuerier{err: errors.New("boom")}
	srv := New(Deps{Backends: map[string]Querier{"main": q}, DefaultSite: "main"}, "test")

	result := callTool(t, srv, "contentd_query", map[string]any{"query": "x"})
	if !result.IsError || !strings.Contains(result.Content[0].Text, "boom") {
		t.Errorf("expected backend error, got: %+v", result)
	}

	result = callTool(t, srv, "contentd_query", map[string]any{"query": "x", "site": "other"})
	if !result.IsError || !strings.Contains(result.Content[0].Text, "other") {
		t.Errorf("expected unknown site error, got: %+v", result)
	}
}

func TestToolCallNotConfigured(t *testing.T) {
	srv := New(Deps{}, "test")
	for _, name := range []string{
		"contentd_cache_stats",
		"contentd_snapshots",
		"contentd_snapshot_show",
		"contentd_diag_search",
		"contentd_diag_stats",
		"contentd_hub_sessions",
	} {
		result := callTool(t, srv, name, map[string]any{"route": "/"})
		if result.IsError {
			t.Errorf("%s: expected non-error result", name)
		}
		if !strings.Contains(result.Content[0].Text, "not configured") {
			t.Errorf("%s: expected 'not configured' message, got: %s", name, result.Content[0].Text)
		}
	}
}

func TestToolCallCacheStats(t *testing.T) {
	cache := &fakeCache{stats: models.CacheStats{Entries: 10, Hits: 20, Misses: 10}}
	srv := New(Deps{Cache: cache}, "test")

	result := callTool(t, srv, "contentd_cache_stats", nil)
	if !strings.Contains(result.Content[0].Text, "66.7%") {
		t.Errorf("expected hit rate 66.7%%, got: %s", result.Content[0].Text)
	}
}

func TestToolCallSnapshots(t *testing.T) {
	store := snapshot.NewMemoryStore()
	err := store.Save(context.Background(), &snapshot.Payload{
		Site:      "main",
		Route:     "/news",
		Data:      map[string]json.RawMessage{"sanity:abc": json.RawMessage(`[1,2]`)},
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Deps{Snapshots: store, DefaultSite: "main"}, "test")

	result := callTool(t, srv, "contentd_snapshots", nil)
	if !strings.Contains(result.Content[0].Text, "/news") {
		t.Errorf("expected /news listed, got: %s", result.Content[0].Text)
	}

	result = callTool(t, srv, "contentd_snapshot_show", map[string]any{"route": "/news/"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "sanity:abc") {
		t.Errorf("expected key listed, got: %s", result.Content[0].Text)
	}

	result = callTool(t, srv, "contentd_snapshot_show", map[string]any{"route": "/events"})
	if result.IsError || !strings.Contains(result.Content[0].Text, "No snapshot") {
		t.Errorf("expected missing snapshot message, got: %+v", result)
	}

	result = callTool(t, srv, "contentd_snapshot_show", map[string]any{})
	if !result.IsError {
		t.Error("expected isError=true for missing route")
	}
}

func TestToolCallDiagSearch(t *testing.T) {
	d := &fakeDiag{records: []models.DiagnosticRecord{{
		Code:      models.CodeAPIFetchFailed,
		Key:       "sanity:abc",
		Site:      "main",
		Route:     "/news",
		Error:     "timeout",
		CreatedAt: time.Now(),
	}}}
	srv := New(Deps{Diagnostics: d}, "test")

	result := callTool(t, srv, "contentd_diag_search", map[string]any{
		"code":  "api-fetch-failed",
		"since": "2026-01-02",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "timeout") {
		t.Errorf("expected record listed, got: %s", result.Content[0].Text)
	}
	if d.opts.Code != models.CodeAPIFetchFailed || d.opts.Limit != 50 {
		t.Errorf("opts = %+v", d.opts)
	}
	if d.opts.Since.Format("2006-01-02") != "2026-01-02" {
		t.Errorf("since = %v", d.opts.Since)
	}

	result = callTool(t, srv, "contentd_diag_search", map[string]any{"since": "yesterday"})
	if !result.IsError {
		t.Error("expected isError=true for bad date")
	}
}

func TestToolCallDiagStats(t *testing.T) {
	d := &fakeDiag{stats: []models.DiagnosticStat{{Code: models.CodeFreshFetchFailed, Day: "2026-10-01", Count: 4}}}
	srv := New(Deps{Diagnostics: d}, "test")

	result := callTool(t, srv, "contentd_diag_stats", nil)
	if !strings.Contains(result.Content[0].Text, "fresh-fetch-failed") {
		t.Errorf("expected stat listed, got: %s", result.Content[0].Text)
	}
}

func TestToolCallHubSessions(t *testing.T) {
	h := &fakeHub{sessions: []models.HubSession{{ID: "sess-1", Site: "main"}}}
	srv := New(Deps{Hub: h, DefaultSite: "main"}, "test")

	result := callTool(t, srv, "contentd_hub_sessions", nil)
	if !strings.Contains(result.Content[0].Text, "sess-1") {
		t.Errorf("expected session listed, got: %s", result.Content[0].Text)
	}
	if h.site != "main" {
		t.Errorf("site = %q, want main", h.site)
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(Deps{}, "test")
	result := callTool(t, srv, "nope", nil)
	if !result.IsError {
		t.Error("expected isError=true")
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(Deps{}, "test")
	line, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got: %s", out.String())
	}
}

func TestParseError(t *testing.T) {
	srv := New(Deps{}, "test")
	var out bytes.Buffer
	if err := srv.Run(context.Background(), strings.NewReader("{not json\n"), &out); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`5`),
		Method:  "unknown/method",
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("error code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}
