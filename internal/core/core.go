// Package core implements the request surface (C9): the four typed
// operations — search, read, batch_get, stats — that sit on top of the
// registry, posting store, filter cache, and query planner. A *Core value
// is threaded explicitly by callers; it holds no global mutable state.
package core

import (
	"time"

	"github.com/edirooss/capdir/internal/core/apierr"
	"github.com/edirooss/capdir/internal/core/filter"
	"github.com/edirooss/capdir/internal/core/query"
	"github.com/edirooss/capdir/internal/core/registry"
	"github.com/edirooss/capdir/internal/core/tailer"
	"github.com/edirooss/capdir/internal/model"
)

// Core ties the search core's layers together behind the four operations
// spec.md §4.9 names.
type Core struct {
	reg     *registry.Registry
	cache   *filter.Cache
	tailer  *tailer.Tailer
	buildAt time.Time
}

// New constructs a Core over an already-bootstrapped registry and tailer.
func New(reg *registry.Registry, cache *filter.Cache, t *tailer.Tailer) *Core {
	return &Core{reg: reg, cache: cache, tailer: t, buildAt: time.Now()}
}

// SearchOptions carries the parsed, validated parameters of a search
// request: a raw filter string (parsed/cached here), limit, an opaque
// cursor string, and a free-text substring query.
type SearchOptions struct {
	Filter string
	Limit  int
	Cursor string
	Q      string
}

// SearchResult is search's output: the hits in sort order plus the
// opaque cursor for the next page, empty when this is the last page.
type SearchResult struct {
	Items      []model.Hit
	NextCursor string
}

// Search compiles opts.Filter (via the AST cache), decodes opts.Cursor,
// and runs the planner, projecting each doc into a Hit.
func (c *Core) Search(opts SearchOptions, requester model.Requester) (SearchResult, error) {
	var ast *filter.Node
	if opts.Filter != "" {
		n, err := c.cache.Get(opts.Filter)
		if err != nil {
			if ife, ok := err.(*filter.InvalidFilterError); ok {
				return SearchResult{}, apierr.New(apierr.InvalidFilter, ife.Error()).
					WithDetails(map[string]any{"pos": ife.Pos})
			}
			return SearchResult{}, apierr.Wrap(apierr.Internal, "filter parse failed", err)
		}
		ast = n
	}

	var cur *query.Cursor
	if opts.Cursor != "" {
		decoded, err := query.DecodeCursor(opts.Cursor)
		if err != nil {
			return SearchResult{}, apierr.New(apierr.InvalidRequest, "invalid cursor")
		}
		cur = &decoded
	}

	snap := c.reg.Snapshot()
	defer snap.Release()

	res, err := query.Search(snap, snap, query.Options{
		Filter: ast,
		Limit:  opts.Limit,
		Cursor: cur,
		Q:      opts.Q,
	}, requester)
	if err != nil {
		if ife, ok := err.(*filter.InvalidFilterError); ok {
			return SearchResult{}, apierr.New(apierr.InvalidFilter, ife.Error()).
				WithDetails(map[string]any{"pos": ife.Pos})
		}
		return SearchResult{}, apierr.Wrap(apierr.Internal, "search failed", err)
	}

	out := SearchResult{NextCursor: res.NextCursor}
	for _, doc := range res.Items {
		out.Items = append(out.Items, model.Hit{Entry: doc.Entry, Card: doc.Card})
	}
	return out, nil
}

// Read looks up a single entry by id, returning not_found when unknown or
// when visibility denies the requester (spec.md §7: deny-vs-missing
// collapses to not_found).
func (c *Core) Read(id string, requester model.Requester) (model.Hit, error) {
	snap := c.reg.Snapshot()
	defer snap.Release()

	doc := snap.Get(id)
	if doc == nil || !visible(snap, doc, requester) {
		return model.Hit{}, apierr.New(apierr.NotFound, "entry not found")
	}
	return model.Hit{Entry: doc.Entry, Card: doc.Card}, nil
}

// BatchGetResult is batch_get's output: found items (in input order) plus
// a count of ids omitted for being unknown or visibility-denied.
type BatchGetResult struct {
	Items   []model.Hit
	Omitted int
}

// BatchGet looks up each id in order, counting misses and visibility
// denials together as Omitted (spec.md §4.9).
func (c *Core) BatchGet(ids []string, requester model.Requester) BatchGetResult {
	snap := c.reg.Snapshot()
	defer snap.Release()

	var out BatchGetResult
	for _, id := range ids {
		doc := snap.Get(id)
		if doc == nil || !visible(snap, doc, requester) {
			out.Omitted++
			continue
		}
		out.Items = append(out.Items, model.Hit{Entry: doc.Entry, Card: doc.Card})
	}
	return out
}

// visible applies the identical allowed-bitmap predicate search uses, so
// search/read/batch_get never disagree about who can see a doc.
func visible(snap *registry.Snapshot, doc *model.IndexedDoc, requester model.Requester) bool {
	allowed := snap.VisibilityAllowed(requester.Authenticated, requester.Groups)
	return allowed.Contains(doc.DocID)
}

// Stats is stats()'s output (spec.md §4.9), with an added memory estimate
// and wall-clock build-age for /core/stats.
type Stats struct {
	Docs                int
	EqTokens            int
	PresenceTokens      int
	PostingsCardinality uint64
	MemoryApproxBytes   uint64
	BuildMS             int64
	LastSeq             int64
}

// Stats reports the registry's current counters plus the tailer's
// last_seq.
func (c *Core) Stats() Stats {
	docs, eq, presence, postings := c.reg.Stats()
	return Stats{
		Docs:                docs,
		EqTokens:            eq,
		PresenceTokens:      presence,
		PostingsCardinality: postings,
		MemoryApproxBytes:   approxMemory(docs, eq, presence, postings),
		BuildMS:             time.Since(c.buildAt).Milliseconds(),
		LastSeq:             c.tailer.LastSeq(),
	}
}

// approxMemory is a rough, intentionally coarse estimate: roaring bitmaps
// compress, so token/posting counts are a better proxy than doc count
// alone. Not meant to be exact — callers should treat it as orientational.
func approxMemory(docs, eqTokens, presenceTokens int, postingsCardinality uint64) uint64 {
	const perDoc = 256
	const perToken = 64
	const perPosting = 4
	return uint64(docs)*perDoc + uint64(eqTokens+presenceTokens)*perToken + postingsCardinality*perPosting
}
