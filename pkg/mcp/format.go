package mcp

import (
	"fmt"
	"strings"

	"github.com/eyeonidea/contentd/pkg/models"
	"github.com/eyeonidea/contentd/pkg/snapshot"
)

const timeLayout = "2006-01-02 15:04:05"

func formatSnapshots(list []snapshot.Summary) string {
	if len(list) == 0 {
		return "No snapshots found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %6s  %-20s\n", "Route", "Keys", "Captured")
	b.WriteString(strings.Repeat("-", 68) + "\n")
	for _, s := range list {
		fmt.Fprintf(&b, "%-40s %6d  %-20s\n", s.Route, s.Keys, s.CreatedAt.Format(timeLayout))
	}
	return b.String()
}

func formatPayload(p *snapshot.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site:     %s\nRoute:    %s\nCaptured: %s\nKeys:     %d\n",
		p.Site, p.Route, p.CreatedAt.Format(timeLayout), len(p.Data))
	for _, key := range p.Keys() {
		value := string(p.Data[key])
		if len(value) > 200 {
			value = value[:200] + "..."
		}
		fmt.Fprintf(&b, "\n%s\n  %s\n", key, value)
	}
	return b.String()
}

func formatDiagRecords(records []models.DiagnosticRecord) string {
	if len(records) == 0 {
		return "No diagnostic records found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-20s %-16s %-12s %-24s %s\n",
		"Time", "Code", "Key", "Site", "Route", "Error")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, r := range records {
		msg := r.Error
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		route := r.Route
		if route == "" {
			route = "-"
		}
		fmt.Fprintf(&b, "%-20s %-20s %-16s %-12s %-24s %s\n",
			r.CreatedAt.Format(timeLayout), r.Code, r.Key, r.Site, route, msg)
	}
	return b.String()
}

func formatDiagStats(stats []models.DiagnosticStat) string {
	if len(stats) == 0 {
		return "No diagnostic records found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-20s %8s\n", "Day", "Code", "Count")
	b.WriteString(strings.Repeat("-", 42) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-20s %8d\n", s.Day, s.Code, s.Count)
	}
	return b.String()
}

func formatSessions(sessions []models.HubSession) string {
	if len(sessions) == 0 {
		return "No active sessions."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-12s %-20s %-20s %-20s\n",
		"Session ID", "Site", "Created", "Last Seen", "Expires")
	b.WriteString(strings.Repeat("-", 114) + "\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "%-38s %-12s %-20s %-20s %-20s\n",
			s.ID, s.Site,
			s.CreatedAt.Format(timeLayout),
			s.LastSeen.Format(timeLayout),
			s.ExpiresAt.Format(timeLayout))
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
