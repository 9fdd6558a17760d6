// Package sanity talks to the headless CMS query API, either directly or
// through a contentd server's query proxy.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eyeonidea/contentd/pkg/config"
	"github.com/eyeonidea/contentd/pkg/models"
)

// PerspectivePublished restricts queries to published documents.
const PerspectivePublished = "published"

// APIError is a non-success response from the query API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("query api: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("query api: status %d", e.StatusCode)
}

// Client queries one CMS project dataset.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient creates a Client for the site's CMS project. A nil httpClient
// gets one with the configured timeout (10s by default).
func NewClient(cfg config.SanityConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: queryEndpoint(cfg),
		token:    cfg.Token,
		http:     httpClient,
	}
}

func queryEndpoint(cfg config.SanityConfig) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		host := "api.sanity.io"
		if cfg.UseCDN {
			host = "apicdn.sanity.io"
		}
		base = fmt.Sprintf("https://%s.%s", cfg.ProjectID, host)
	}
	version := strings.TrimPrefix(cfg.APIVersion, "v")
	q := url.Values{}
	q.Set("perspective", PerspectivePublished)
	return fmt.Sprintf("%s/v%s/data/query/%s?%s", base, version, url.PathEscape(cfg.Dataset), q.Encode())
}

// Query runs query with params and returns the raw result.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(models.QueryRequest{Query: query, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	res, err := doQueryRequest(ctx, c.http, c.endpoint, headers, body)
	if err != nil {
		return nil, err
	}
	if res.statusCode < 200 || res.statusCode >= 300 {
		return nil, apiError(res)
	}

	var qr models.QueryResponse
	if err := json.Unmarshal(res.body, &qr); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if qr.Result == nil {
		return json.RawMessage("null"), nil
	}
	return qr.Result, nil
}

// ProxyClient sends queries to a contentd server's /api/sanity/query
// endpoint, which answers with the bare result.
type ProxyClient struct {
	endpoint string
	site     string
	http     *http.Client
}

// NewProxyClient creates a ProxyClient for the server at baseURL. When site is
// set it is sent as the X-Contentd-Site header.
func NewProxyClient(baseURL, site string, httpClient *http.Client) *ProxyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProxyClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/sanity/query",
		site:     site,
		http:     httpClient,
	}
}

// Query runs query with params through the proxy.
func (p *ProxyClient) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(models.QueryRequest{Query: query, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	headers := map[string]string{}
	if p.site != "" {
		headers["X-Contentd-Site"] = p.site
	}
	res, err := doQueryRequest(ctx, p.http, p.endpoint, headers, body)
	if err != nil {
		return nil, err
	}
	if res.statusCode < 200 || res.statusCode >= 300 {
		return nil, apiError(res)
	}
	if len(bytes.TrimSpace(res.body)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(res.body) {
		return nil, fmt.Errorf("proxy returned invalid JSON")
	}
	return json.RawMessage(res.body), nil
}

type queryResult struct {
	statusCode int
	body       []byte
}

func doQueryRequest(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body []byte) (*queryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &queryResult{statusCode: resp.StatusCode, body: respBody}, nil
}

func apiError(res *queryResult) error {
	e := &APIError{StatusCode: res.statusCode}
	var qe models.QueryError
	if err := json.Unmarshal(res.body, &qe); err == nil && qe.Error.Description != "" {
		e.Description = qe.Error.Description
	} else {
		// contentd's own error envelope
		var pe struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(res.body, &pe); err == nil {
			e.Description = pe.Error.Message
		}
	}
	return e
}
