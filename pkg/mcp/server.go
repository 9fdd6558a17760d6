// Package mcp serves operator tools for contentd over stdio JSON-RPC.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

// Querier runs content queries for one site.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error)
}

// CacheStatter provides cache statistics without coupling to a concrete cache implementation.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// DiagSearcher reads persisted diagnostics.
type DiagSearcher interface {
	Query(ctx context.Context, opts models.DiagnosticQueryOpts) ([]models.DiagnosticRecord, error)
	Stats(ctx context.Context) ([]models.DiagnosticStat, error)
}

// SessionLister lists client hub sessions.
type SessionLister interface {
	Sessions(ctx context.Context, site string) ([]models.HubSession, error)
}

// Deps are the data sources behind the tools. Any of them may be nil, in
// which case the matching tools report that the feature is not configured.
type Deps struct {
	Backends    map[string]Querier
	DefaultSite string
	Namespace   string
	Snapshots   snapshot.Store
	Cache       CacheStatter
	Diagnostics DiagSearcher
	Hub         SessionLister
}

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	deps    Deps
	version string
}

// New creates a new MCP Server.
func New(deps Deps, version string) *Server {
	return &Server{deps: deps, version: version}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		// Notifications get no response.
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "contentd", Version: s.version},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	return resultResponse(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("mcp: marshal error: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		log.Printf("mcp: write error: %v", err)
	}
}
