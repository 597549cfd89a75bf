// Package registry implements the document registry (C6): doc-id
// allocation, per-doc records, sort-key ordering, and card projection. It
// also implements eval.Context, resolving AST keys into posting lookups.
package registry

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edirooss/capdir/internal/core/filter"
	"github.com/edirooss/capdir/internal/core/posting"
	"github.com/edirooss/capdir/internal/model"
)

const (
	scopeTop  = "top"
	scopeAttr = "attr"
)

var topLevelFields = map[string]bool{
	"id": true, "type": true, "name": true,
	"namespace": true, "version": true, "rev": true,
}

// Registry is the process-wide in-memory index: the document registry,
// the posting store, and the visibility bitmaps. A single RWMutex guards
// the whole snapshot (spec §5 option (a)) — readers hold it in read mode
// for the duration of one request; the tailer holds it in write mode only
// while mutating one doc's tokens, visibility, and sort position.
type Registry struct {
	mu sync.RWMutex

	byID      map[string]uint32 // entry id -> doc id
	byDoc     map[uint32]*model.IndexedDoc
	nextDocID uint32

	universe *roaring.Bitmap
	postings *posting.Store
	vis      *posting.VisibilitySet

	sortOrder []uint32       // doc ids, descending (updated_at, id)
	rank      map[uint32]int // doc id -> index into sortOrder
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		byID:      make(map[string]uint32),
		byDoc:     make(map[uint32]*model.IndexedDoc),
		nextDocID: 1, // doc id 0 is never assigned (spec §4.6: "starting at 1")
		universe:  roaring.New(),
		postings:  posting.New(),
		vis:       posting.NewVisibilitySet(),
		rank:      make(map[uint32]int),
	}
}

// Upsert applies an incoming entry. If the id is unknown, a doc is
// created. If the incoming rev is not strictly greater than the stored
// rev, the update is ignored (Invariant 2, idempotence). When resort is
// false, the sort order is left stale — callers doing a bulk load should
// pass false and call Resort once at the end; the tailer's per-change path
// passes true to keep the order maintained incrementally.
//
// Returns true if the entry was applied.
func (r *Registry) Upsert(e *model.Entry, resort bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	docID, exists := r.byID[e.ID]
	if exists {
		old := r.byDoc[docID]
		if e.Rev <= old.Entry.Rev {
			return false
		}
		r.removeDocTokens(docID, old)
	} else {
		docID = r.nextDocID
		r.nextDocID++
		r.byID[e.ID] = docID
	}

	doc := model.NewIndexedDoc(docID, e)
	r.byDoc[docID] = doc
	r.universe.Add(docID)
	r.installDocTokens(docID, doc)

	if resort {
		r.resortLocked()
	}
	return true
}

// Resort rebuilds the sort order and rank map from the current universe.
// Exposed so a bulk snapshot load can defer sorting to the end (spec
// §4.8 startup: "batch, no resort per-row, resort once").
func (r *Registry) Resort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resortLocked()
}

func (r *Registry) resortLocked() {
	ids := r.universe.ToArray()
	sort.Slice(ids, func(i, j int) bool {
		return r.lessSortLocked(ids[i], ids[j])
	})
	r.sortOrder = ids
	r.rank = make(map[uint32]int, len(ids))
	for i, id := range ids {
		r.rank[id] = i
	}
}

// lessSortLocked reports whether doc a sorts strictly before doc b under
// descending (updated_at, id) order.
func (r *Registry) lessSortLocked(a, b uint32) bool {
	da, db := r.byDoc[a], r.byDoc[b]
	if da.Entry.UpdatedAt != db.Entry.UpdatedAt {
		return da.Entry.UpdatedAt > db.Entry.UpdatedAt
	}
	return da.Entry.ID > db.Entry.ID
}

func (r *Registry) removeDocTokens(docID uint32, doc *model.IndexedDoc) {
	e := doc.Entry
	forEachToken(e, func(scope, key, value string) {
		r.postings.RemoveEq(posting.EqToken(scope, key, value), docID)
	})
	forEachPresenceKey(e, func(scope, key string) {
		r.postings.RemovePresence(posting.PresenceToken(scope, key), docID)
	})
	switch doc.Visibility {
	case model.VisibilityPublic:
		r.vis.Public.Remove(docID)
	case model.VisibilityInternal:
		r.vis.Internal.Remove(docID)
	case model.VisibilityRestricted:
		r.vis.Restricted.Remove(docID)
		for _, g := range doc.AllowGroups {
			r.vis.RemoveGroup(g, docID)
		}
	}
}

func (r *Registry) installDocTokens(docID uint32, doc *model.IndexedDoc) {
	e := doc.Entry
	forEachToken(e, func(scope, key, value string) {
		r.postings.AddEq(posting.EqToken(scope, key, value), docID)
	})
	forEachPresenceKey(e, func(scope, key string) {
		r.postings.AddPresence(posting.PresenceToken(scope, key), docID)
	})
	switch doc.Visibility {
	case model.VisibilityPublic:
		r.vis.Public.Add(docID)
	case model.VisibilityInternal:
		r.vis.Internal.Add(docID)
	case model.VisibilityRestricted:
		r.vis.Restricted.Add(docID)
		for _, g := range doc.AllowGroups {
			r.vis.AddGroup(g, docID)
		}
	}
}

// forEachToken visits every (scope, key, value) actually present on e:
// the six top-level fields plus every attrs key/value pair, deduplicated
// within a key (spec §3: "duplicates within one key are ... collapsed").
func forEachToken(e *model.Entry, visit func(scope, key, value string)) {
	visit(scopeTop, "id", e.ID)
	visit(scopeTop, "type", e.Type)
	visit(scopeTop, "name", e.Name)
	visit(scopeTop, "namespace", e.Namespace)
	if e.Version != "" {
		visit(scopeTop, "version", e.Version)
	}
	visit(scopeTop, "rev", strconv.FormatInt(e.Rev, 10))

	for key, values := range e.Attrs {
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if seen[v] {
				continue
			}
			seen[v] = true
			visit(scopeAttr, key, v)
		}
	}
}

// forEachPresenceKey visits every (scope, key) that has at least one
// value on e.
func forEachPresenceKey(e *model.Entry, visit func(scope, key string)) {
	visit(scopeTop, "id")
	visit(scopeTop, "type")
	visit(scopeTop, "name")
	visit(scopeTop, "namespace")
	if e.Version != "" {
		visit(scopeTop, "version")
	}
	visit(scopeTop, "rev")
	for key, values := range e.Attrs {
		if len(values) > 0 {
			visit(scopeAttr, key)
		}
	}
}

// Get returns the IndexedDoc for an entry id, or nil if unknown.
func (r *Registry) Get(id string) *model.IndexedDoc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) *model.IndexedDoc {
	docID, ok := r.byID[id]
	if !ok {
		return nil
	}
	return r.byDoc[docID]
}

// GetDoc returns the IndexedDoc for a doc id, or nil if unknown.
func (r *Registry) GetDoc(docID uint32) *model.IndexedDoc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byDoc[docID]
}

// Universe returns a clone of the universe bitmap (safe for the caller to
// retain across the lock).
func (r *Registry) Universe() *roaring.Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.universe.Clone()
}

// SortOrder returns the current sort order slice and rank map. Callers
// must not mutate the returned slice/map; they are replaced wholesale on
// the next Resort, never mutated in place, so it is safe to read them
// without holding the lock for the duration of a scan.
func (r *Registry) SortOrder() ([]uint32, map[uint32]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortOrder, r.rank
}

// VisibilityAllowed computes the bitmap of docs visible to a requester.
func (r *Registry) VisibilityAllowed(authenticated bool, groups []string) *roaring.Bitmap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vis.Allowed(authenticated, groups)
}

// Snapshot takes out a read lock and returns a handle through which a
// single reader (a search, a read, a batch_get) observes one consistent
// view of the registry across several calls — spec §5's requirement that
// a concurrent search never see a half-applied update, option (a): one
// RWMutex, held in read mode for the request's duration. Callers must call
// Release exactly once.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	return &Snapshot{r: r}
}

// Snapshot is a Registry view held under one read-lock acquisition. It
// implements both query.Index and eval.Context, so a single Snapshot value
// can be passed as both arguments to query.Search.
type Snapshot struct {
	r *Registry
}

// Release returns the read lock. Safe to call exactly once.
func (s *Snapshot) Release() { s.r.mu.RUnlock() }

func (s *Snapshot) Get(id string) *model.IndexedDoc { return s.r.getLocked(id) }

func (s *Snapshot) GetDoc(docID uint32) *model.IndexedDoc { return s.r.byDoc[docID] }

func (s *Snapshot) Universe() *roaring.Bitmap { return s.r.universe.Clone() }

func (s *Snapshot) SortOrder() ([]uint32, map[uint32]int) { return s.r.sortOrder, s.r.rank }

func (s *Snapshot) VisibilityAllowed(authenticated bool, groups []string) *roaring.Bitmap {
	return s.r.vis.Allowed(authenticated, groups)
}

func (s *Snapshot) EqPosting(node *filter.Node) (*roaring.Bitmap, error) {
	return s.r.eqPostingLocked(node)
}

func (s *Snapshot) PresencePosting(node *filter.Node) (*roaring.Bitmap, error) {
	return s.r.presencePostingLocked(node)
}

// DocCount returns the number of docs in the registry.
func (r *Registry) DocCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDoc)
}

// Stats returns raw counters consumed by core.Stats().
func (r *Registry) Stats() (docs int, eqTokens int, presenceTokens int, postingsCardinality uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDoc), r.postings.EqTokenCount(), r.postings.PresenceTokenCount(), r.postings.PostingsCardinality()
}

// --- eval.Context implementation ---

// EqPosting implements eval.Context, resolving node.Key per spec §4.3 and
// looking up the equality posting under read lock.
func (r *Registry) EqPosting(node *filter.Node) (*roaring.Bitmap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eqPostingLocked(node)
}

func (r *Registry) eqPostingLocked(node *filter.Node) (*roaring.Bitmap, error) {
	scope, key, err := resolveKey(node.Key)
	if err != nil {
		return nil, err
	}
	if scope == scopeTop && key == "rev" {
		if _, err := strconv.ParseInt(node.Value, 10, 64); err != nil {
			return nil, &filter.InvalidFilterError{Pos: node.ValuePos, Msg: "rev must be an integer"}
		}
	}
	return r.postings.GetEq(posting.EqToken(scope, key, node.Value)), nil
}

// PresencePosting implements eval.Context.
func (r *Registry) PresencePosting(node *filter.Node) (*roaring.Bitmap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.presencePostingLocked(node)
}

func (r *Registry) presencePostingLocked(node *filter.Node) (*roaring.Bitmap, error) {
	scope, key, err := resolveKey(node.Key)
	if err != nil {
		return nil, err
	}
	return r.postings.GetPresence(posting.PresenceToken(scope, key)), nil
}

// resolveKey classifies a raw filter key (C3), applied in order:
//  1. "attrs."-prefixed keys are attr keys (remainder must be non-empty).
//  2. One of the six top-level field names is a top key.
//  3. Anything else is an attr key unchanged (e.g. "tag" means "attrs.tag").
func resolveKey(raw string) (scope, key string, err error) {
	if strings.HasPrefix(raw, "attrs.") {
		rest := raw[len("attrs."):]
		if rest == "" {
			return "", "", &filter.InvalidFilterError{Pos: 0, Msg: "empty attribute key in \"" + raw + "\""}
		}
		return scopeAttr, rest, nil
	}
	if topLevelFields[raw] {
		return scopeTop, raw, nil
	}
	return scopeAttr, raw, nil
}
