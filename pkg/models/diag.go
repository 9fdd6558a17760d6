package models

import "time"

// DiagnosticCode identifies the kind of fetch failure being reported.
type DiagnosticCode string

const (
	CodeFreshFetchFailed  DiagnosticCode = "fresh-fetch-failed"
	CodeAPIFetchFailed    DiagnosticCode = "api-fetch-failed"
	CodeRenderFetchFailed DiagnosticCode = "render-fetch-failed"
)

// DiagnosticRecord is a structured failure report emitted by the fetcher.
type DiagnosticRecord struct {
	ID        string         `json:"id"`
	Code      DiagnosticCode `json:"code"`
	Key       string         `json:"key"`
	Site      string         `json:"site,omitempty"`
	Route     string         `json:"route,omitempty"`
	Error     string         `json:"error"`
	CreatedAt time.Time      `json:"created_at"`
}

// DiagnosticsConfig controls the diagnostics subsystem.
type DiagnosticsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxErrorSize  int    `yaml:"max_error_size"` // bytes
}

// DiagnosticQueryOpts specifies filters for querying diagnostic records.
type DiagnosticQueryOpts struct {
	Code  DiagnosticCode
	Key   string
	Site  string
	Route string
	Since time.Time
	Limit int
}

// DiagnosticStat holds aggregate counts for a code/day combination.
type DiagnosticStat struct {
	Code  DiagnosticCode
	Day   string
	Count int
}
