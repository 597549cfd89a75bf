// Package posting implements the posting store (C4): token → compressed
// bitmap of document ids, backed by github.com/RoaringBitmap/roaring/v2,
// the same bitmap library the pack's qgram posting lists use for candidate
// generation (see DESIGN.md).
package posting

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// EqToken builds the equality-posting token for (scope, key, value):
// `scope "\0k:" key "\0v:" value`. The NUL delimiter prevents collision
// between keys and values (spec §3).
func EqToken(scope, key, value string) string {
	return scope + "\x00k:" + key + "\x00v:" + value
}

// PresenceToken builds the presence-posting token for (scope, key):
// `scope "\0k:" key "\0*"`.
func PresenceToken(scope, key string) string {
	return scope + "\x00k:" + key + "\x00*"
}

// Store holds the two posting maps (equality and presence). The visibility
// bitmaps live in VisibilitySet; the universe and the document registry
// live in package registry, which owns a *Store.
type Store struct {
	eq       map[string]*roaring.Bitmap
	presence map[string]*roaring.Bitmap
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		eq:       make(map[string]*roaring.Bitmap),
		presence: make(map[string]*roaring.Bitmap),
	}
}

// AddEq adds doc to the equality posting for token, creating the bitmap on
// first use.
func (s *Store) AddEq(token string, doc uint32) { addTo(s.eq, token, doc) }

// AddPresence adds doc to the presence posting for token.
func (s *Store) AddPresence(token string, doc uint32) { addTo(s.presence, token, doc) }

// RemoveEq removes doc from the equality posting for token, deleting the
// bitmap entirely once it is empty (Invariant 7).
func (s *Store) RemoveEq(token string, doc uint32) { removeFrom(s.eq, token, doc) }

// RemovePresence removes doc from the presence posting for token.
func (s *Store) RemovePresence(token string, doc uint32) { removeFrom(s.presence, token, doc) }

// GetEq returns the equality posting for token, or nil if absent. The
// returned bitmap is owned by the store and must not be mutated by the
// caller (see package eval's borrow/own discipline).
func (s *Store) GetEq(token string) *roaring.Bitmap { return s.eq[token] }

// GetPresence returns the presence posting for token, or nil if absent.
func (s *Store) GetPresence(token string) *roaring.Bitmap { return s.presence[token] }

// EqTokenCount returns the number of distinct equality tokens (for stats).
func (s *Store) EqTokenCount() int { return len(s.eq) }

// PresenceTokenCount returns the number of distinct presence tokens (for stats).
func (s *Store) PresenceTokenCount() int { return len(s.presence) }

// PostingsCardinality returns the sum of cardinalities across every
// equality and presence bitmap (for stats).
func (s *Store) PostingsCardinality() uint64 {
	var total uint64
	for _, b := range s.eq {
		total += b.GetCardinality()
	}
	for _, b := range s.presence {
		total += b.GetCardinality()
	}
	return total
}

func addTo(m map[string]*roaring.Bitmap, token string, doc uint32) {
	b, ok := m[token]
	if !ok {
		b = roaring.New()
		m[token] = b
	}
	b.Add(doc)
}

func removeFrom(m map[string]*roaring.Bitmap, token string, doc uint32) {
	b, ok := m[token]
	if !ok {
		return
	}
	b.Remove(doc)
	if b.IsEmpty() {
		delete(m, token)
	}
}

// VisibilitySet holds the three visibility-class bitmaps plus the
// group→bitmap map naming which docs a restricted doc's group grants
// visibility to (spec §3 "Visibility sets").
type VisibilitySet struct {
	Public     *roaring.Bitmap
	Internal   *roaring.Bitmap
	Restricted *roaring.Bitmap
	Groups     map[string]*roaring.Bitmap
}

// NewVisibilitySet constructs an empty VisibilitySet.
func NewVisibilitySet() *VisibilitySet {
	return &VisibilitySet{
		Public:     roaring.New(),
		Internal:   roaring.New(),
		Restricted: roaring.New(),
		Groups:     make(map[string]*roaring.Bitmap),
	}
}

// AddGroup adds doc to the group's bitmap, creating it on first use.
func (v *VisibilitySet) AddGroup(group string, doc uint32) {
	b, ok := v.Groups[group]
	if !ok {
		b = roaring.New()
		v.Groups[group] = b
	}
	b.Add(doc)
}

// RemoveGroup removes doc from the group's bitmap, deleting it when empty.
func (v *VisibilitySet) RemoveGroup(group string, doc uint32) {
	b, ok := v.Groups[group]
	if !ok {
		return
	}
	b.Remove(doc)
	if b.IsEmpty() {
		delete(v.Groups, group)
	}
}

// Allowed computes the union of bitmaps visible to a requester: public,
// plus internal if authenticated, plus each named group's restricted
// bitmap the requester belongs to (spec §4.7 step 1).
func (v *VisibilitySet) Allowed(authenticated bool, groups []string) *roaring.Bitmap {
	out := v.Public.Clone()
	if authenticated {
		out.Or(v.Internal)
	}
	for _, g := range groups {
		if b, ok := v.Groups[g]; ok {
			out.Or(b)
		}
	}
	return out
}
