package models

import "encoding/json"

// QueryRequest is a content query and its parameters.
type QueryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params"`
}

// QueryResponse is the envelope returned by the content backend's query API.
type QueryResponse struct {
	Query  string          `json:"query,omitempty"`
	Result json.RawMessage `json:"result"`
	Ms     int             `json:"ms,omitempty"`
}

// QueryError is the error body returned by the content backend.
type QueryError struct {
	Error struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error"`
}
