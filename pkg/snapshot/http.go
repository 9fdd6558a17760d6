package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPSource loads payloads from a contentd server's /api/payload endpoint.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTPSource for the server at baseURL. A nil client
// uses http.DefaultClient.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Load fetches the payload for route. The site is chosen by the server from
// the request host, so site is only sent as a hint.
func (s *HTTPSource) Load(ctx context.Context, site, route string) (*Payload, error) {
	q := url.Values{}
	q.Set("route", NormalizeRoute(route))
	if site != "" {
		q.Set("site", site)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/payload?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load payload %s: status %d", route, resp.StatusCode)
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p.Data == nil {
		return nil, ErrNotFound
	}
	return &p, nil
}
