// Package query implements the query planner & paginator (C7): candidate
// set construction, selective-materialize vs ordered-scan strategy choice,
// cursor encoding, and the case-folded substring filter.
package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Cursor is the opaque pagination token's decoded form: the sort key of the
// last doc included in the previous page, under descending (updated_at, id)
// order (spec §4.7).
type Cursor struct {
	UpdatedAt string `json:"updated_at"`
	ID        string `json:"id"`
}

// ErrInvalidCursor reports undecodable cursor bytes (maps to invalid_request).
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor serializes a cursor as base64url(JSON).
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses an opaque cursor string produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if c.ID == "" || c.UpdatedAt == "" {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// after reports whether (updatedAt, id) sorts strictly after cursor under
// descending (updated_at, id) order — i.e. it is eligible for the next page.
func after(updatedAt, id string, c Cursor) bool {
	if updatedAt != c.UpdatedAt {
		return updatedAt < c.UpdatedAt
	}
	return id < c.ID
}
