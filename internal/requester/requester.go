// Package requester parses a Requester from trusted HTTP headers set by an
// upstream reverse proxy — there is no login flow or session cookie in
// this daemon's scope (spec.md §6 "Requester headers").
package requester

import (
	"net/http"
	"strings"
)

const (
	subjectHeader = "X-Capdir-Subject"
	groupsHeader  = "X-Capdir-Groups"
)

// FromHeaders parses a model.Requester-shaped tuple from h. When enabled is
// false (TRUSTED_HEADERS=false), it always returns the anonymous requester.
func FromHeaders(h http.Header, enabled bool) (authenticated bool, subject string, groups []string) {
	if !enabled {
		return false, "", nil
	}

	subject = strings.TrimSpace(h.Get(subjectHeader))
	auth := strings.TrimSpace(h.Get("Authorization"))
	authenticated = subject != "" || auth != ""

	groups = parseGroups(h.Get(groupsHeader))
	return authenticated, subject, groups
}

// parseGroups splits a comma-separated group list, trimming whitespace and
// de-duplicating, dropping empty entries.
func parseGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, g := range strings.Split(raw, ",") {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
