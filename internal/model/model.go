// Package model holds the data model shared by the search core's layers
// (registry, query planner, tailer, request surface): Entry, the
// restricted Card projection, IndexedDoc, Requester, and Change.
package model

import "time"

// Visibility is one of the three visibility classes an Entry can carry.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityInternal   Visibility = "internal"
	VisibilityRestricted Visibility = "restricted"
)

// Entry is the authoritative projection of a directory entry. The durable
// copy lives in the external store; the core holds this projection.
type Entry struct {
	ID          string              `json:"id"`
	Rev         int64               `json:"rev"`
	Type        string              `json:"type"`
	Namespace   string              `json:"namespace"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Version     string              `json:"version,omitempty"`
	Attrs       map[string][]string `json:"attrs,omitempty"`
	Manifest    any                 `json:"manifest,omitempty"`
	Meta        any                 `json:"meta,omitempty"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

// Visibility returns attrs.visibility[0], defaulting to public (Invariant 4).
func (e *Entry) Visibility() Visibility {
	if vs, ok := e.Attrs["visibility"]; ok && len(vs) > 0 {
		switch Visibility(vs[0]) {
		case VisibilityInternal:
			return VisibilityInternal
		case VisibilityRestricted:
			return VisibilityRestricted
		}
	}
	return VisibilityPublic
}

// AllowedGroups returns attrs.allowed_group, empty if absent.
func (e *Entry) AllowedGroups() []string {
	return e.Attrs["allowed_group"]
}

// Card is the restricted view of an Entry used by list/search results. It
// includes only the allow-listed attribute keys, and only non-empty values
// (spec §4.6).
type Card struct {
	ID          string              `json:"id"`
	Rev         int64               `json:"rev"`
	Type        string              `json:"type"`
	Name        string              `json:"name"`
	Namespace   string              `json:"namespace"`
	Version     string              `json:"version,omitempty"`
	Description string              `json:"description"`
	Attrs       map[string][]string `json:"attrs,omitempty"`
}

// cardAttrKeys is the allow-list of attribute keys projected into Card.
var cardAttrKeys = []string{
	"tag", "capability", "env", "status", "visibility", "endpoint", "auth", "owner",
}

func newCard(e *Entry) Card {
	c := Card{
		ID:          e.ID,
		Rev:         e.Rev,
		Type:        e.Type,
		Name:        e.Name,
		Namespace:   e.Namespace,
		Version:     e.Version,
		Description: e.Description,
	}
	for _, k := range cardAttrKeys {
		if vs, ok := e.Attrs[k]; ok && len(vs) > 0 {
			if c.Attrs == nil {
				c.Attrs = make(map[string][]string, len(cardAttrKeys))
			}
			c.Attrs[k] = vs
		}
	}
	return c
}

// Hit is a single search/read result; callers choose which projection to
// emit (full Entry or restricted Card).
type Hit struct {
	Entry *Entry
	Card  Card
}

// IndexedDoc is the internal record the registry keeps per doc id: an
// entry plus its process-local doc id and precomputed derived fields.
type IndexedDoc struct {
	DocID       uint32
	Entry       *Entry
	NameFold    string // case-folded copy of Entry.Name
	DescFold    string // case-folded copy of Entry.Description
	Card        Card
	Visibility  Visibility
	AllowGroups []string
}

// NewIndexedDoc builds the derived fields for an entry newly assigned docID.
func NewIndexedDoc(docID uint32, e *Entry) *IndexedDoc {
	return &IndexedDoc{
		DocID:       docID,
		Entry:       e,
		NameFold:    FoldASCII(e.Name),
		DescFold:    FoldASCII(e.Description),
		Card:        newCard(e),
		Visibility:  e.Visibility(),
		AllowGroups: e.AllowedGroups(),
	}
}

// FoldASCII applies ASCII case-folding (spec §9 Open Question: case
// folding), preserving the observable semantics of the system this spec
// was distilled from rather than adopting Unicode-aware folding.
func FoldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Requester is the authentication context a caller presents to the core.
type Requester struct {
	Authenticated bool
	Subject       string
	Groups        []string
}

// Anonymous is the zero-value unauthenticated Requester.
var Anonymous = Requester{}

// Change is a single row observed by the tailer, joining the change log to
// the entries table by (id, rev). Entry is nil when the join found no
// matching row (spec §4.8: "if the joined entry is present").
type Change struct {
	Seq        int64
	ID         string
	Rev        int64
	ChangeType string
	ChangedAt  time.Time
	Entry      *Entry
}
