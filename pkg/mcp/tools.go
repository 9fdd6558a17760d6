package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/querykey"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// Tool argument structs.

type queryArgs struct {
	Site   string         `json:"site"`
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

type siteArgs struct {
	Site string `json:"site"`
}

type snapshotArgs struct {
	Site  string `json:"site"`
	Route string `json:"route"`
}

type diagSearchArgs struct {
	Code  string `json:"code"`
	Key   string `json:"key"`
	Site  string `json:"site"`
	Route string `json:"route"`
	Since string `json:"since"`
	Limit int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"contentd_query_key":     handleQueryKey,
	"contentd_query":         handleQuery,
	"contentd_cache_stats":   handleCacheStats,
	"contentd_snapshots":     handleSnapshots,
	"contentd_snapshot_show": handleSnapshotShow,
	"contentd_diag_search":   handleDiagSearch,
	"contentd_diag_stats":    handleDiagStats,
	"contentd_hub_sessions":  handleHubSessions,
}

var (
	siteProp   = Property{Type: "string", Description: "Site name (optional, defaults to the first configured site)"}
	queryProp  = Property{Type: "string", Description: "GROQ query text"}
	paramsProp = Property{Type: "object", Description: "Query parameters (optional)"}
)

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "contentd_query_key",
		Description: "Compute the cache key a query and its params resolve to. Snapshot payloads and caches are indexed by this key.",
		InputSchema: object([]string{"query"}, map[string]Property{
			"query":  queryProp,
			"params": paramsProp,
		}),
	},
	{
		Name:        "contentd_query",
		Description: "Run a GROQ query against a site's content backend and return the raw JSON result.",
		InputSchema: object([]string{"query"}, map[string]Property{
			"site":   siteProp,
			"query":  queryProp,
			"params": paramsProp,
		}),
	},
	{
		Name:        "contentd_cache_stats",
		Description: "Show query result cache statistics (entries, hits, misses, hit rate).",
		InputSchema: object(nil, nil),
	},
	{
		Name:        "contentd_snapshots",
		Description: "List the route snapshots captured for a site.",
		InputSchema: object(nil, map[string]Property{"site": siteProp}),
	},
	{
		Name:        "contentd_snapshot_show",
		Description: "Show the keys and values captured in one route snapshot.",
		InputSchema: object([]string{"route"}, map[string]Property{
			"site":  siteProp,
			"route": {Type: "string", Description: "Route path, e.g. /news"},
		}),
	},
	{
		Name:        "contentd_diag_search",
		Description: "Search recorded fetch failures by code, key, site, route or date.",
		InputSchema: object(nil, map[string]Property{
			"code":  {Type: "string", Description: "Diagnostic code (fresh-fetch-failed, api-fetch-failed, render-fetch-failed)"},
			"key":   {Type: "string", Description: "Filter by query key"},
			"site":  {Type: "string", Description: "Filter by site"},
			"route": {Type: "string", Description: "Filter by route"},
			"since": {Type: "string", Description: "Start date in YYYY-MM-DD format"},
			"limit": {Type: "integer", Description: "Maximum number of records (default 50)"},
		}),
	},
	{
		Name:        "contentd_diag_stats",
		Description: "Show daily failure counts per diagnostic code.",
		InputSchema: object(nil, nil),
	},
	{
		Name:        "contentd_hub_sessions",
		Description: "List active client hub sessions for a site.",
		InputSchema: object(nil, map[string]Property{"site": siteProp}),
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (s *Server) site(name string) string {
	if name == "" {
		return s.deps.DefaultSite
	}
	return name
}

func handleQueryKey(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args queryArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.Query == "" {
		return errorResult("query is required")
	}
	ns := s.deps.Namespace
	if ns == "" {
		ns = querykey.DefaultNamespace
	}
	key, err := querykey.Make(ns, args.Query, args.Params)
	if err != nil {
		return errorResult("Error computing key: " + err.Error())
	}
	return textResult(key)
}

func handleQuery(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args queryArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.Query == "" {
		return errorResult("query is required")
	}
	site := s.site(args.Site)
	backend, ok := s.deps.Backends[site]
	if !ok {
		return errorResult(fmt.Sprintf("No content backend for site %q.", site))
	}
	result, err := backend.Query(ctx, args.Query, args.Params)
	if err != nil {
		return errorResult("Query failed: " + err.Error())
	}
	return textResult(indentJSON(result))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.deps.Cache.Stats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleSnapshots(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Snapshots == nil {
		return textResult("Snapshots are not configured.")
	}
	var args siteArgs
	_ = decodeArgs(rawArgs, &args)
	list, err := s.deps.Snapshots.List(ctx, s.site(args.Site))
	if err != nil {
		return errorResult("Error listing snapshots: " + err.Error())
	}
	return textResult(formatSnapshots(list))
}

func handleSnapshotShow(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Snapshots == nil {
		return textResult("Snapshots are not configured.")
	}
	var args snapshotArgs
	_ = decodeArgs(rawArgs, &args)
	if args.Route == "" {
		return errorResult("route is required")
	}
	p, err := s.deps.Snapshots.Load(ctx, s.site(args.Site), args.Route)
	if errors.Is(err, snapshot.ErrNotFound) {
		return textResult("No snapshot for route " + snapshot.NormalizeRoute(args.Route) + ".")
	}
	if err != nil {
		return errorResult("Error loading snapshot: " + err.Error())
	}
	return textResult(formatPayload(p))
}

func handleDiagSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Diagnostics == nil {
		return textResult("Diagnostics storage is not configured.")
	}
	var args diagSearchArgs
	_ = decodeArgs(rawArgs, &args)

	opts := models.DiagnosticQueryOpts{
		Code:  models.DiagnosticCode(args.Code),
		Key:   args.Key,
		Site:  args.Site,
		Route: args.Route,
		Limit: args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}
	records, err := s.deps.Diagnostics.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching diagnostics: " + err.Error())
	}
	return textResult(formatDiagRecords(records))
}

func handleDiagStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Diagnostics == nil {
		return textResult("Diagnostics storage is not configured.")
	}
	stats, err := s.deps.Diagnostics.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching diagnostic stats: " + err.Error())
	}
	return textResult(formatDiagStats(stats))
}

func handleHubSessions(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.deps.Hub == nil {
		return textResult("Client hub is not configured.")
	}
	var args siteArgs
	_ = decodeArgs(rawArgs, &args)
	sessions, err := s.deps.Hub.Sessions(ctx, s.site(args.Site))
	if err != nil {
		return errorResult("Error listing sessions: " + err.Error())
	}
	return textResult(formatSessions(sessions))
}

func indentJSON(raw json.RawMessage) string {
	var b bytes.Buffer
	if err := json.Indent(&b, raw, "", "  "); err != nil {
		return string(raw)
	}
	return b.String()
}
