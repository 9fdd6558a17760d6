package models

import "time"

// HubSession is an authenticated client hub login.
type HubSession struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at t.
func (s HubSession) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && t.After(s.ExpiresAt)
}
