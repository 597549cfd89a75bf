package query

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edirooss/capdir/internal/core/eval"
	"github.com/edirooss/capdir/internal/core/filter"
	"github.com/edirooss/capdir/internal/model"
)

// SelectiveThreshold and SelectiveFraction are the strategy-choice tuning
// parameters (spec §9 "Selectivity threshold"): selective-materialize is
// chosen when the candidate set has at most SelectiveThreshold docs, or at
// most 1/SelectiveFraction of the universe, whichever is looser.
const (
	SelectiveThreshold = 5000
	SelectiveFraction  = 100
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Index is the planner's view of the registry: universe, precomputed sort
// order, visibility, and per-doc lookup. *registry.Registry satisfies it.
type Index interface {
	Universe() *roaring.Bitmap
	SortOrder() ([]uint32, map[uint32]int)
	VisibilityAllowed(authenticated bool, groups []string) *roaring.Bitmap
	GetDoc(docID uint32) *model.IndexedDoc
}

// Options carries the per-request search parameters (spec §4.7 inputs).
type Options struct {
	Filter *filter.Node
	Limit  int
	Cursor *Cursor
	Q      string
}

// Result is the planner's output: a page of docs plus the opaque cursor for
// the next page, empty when this was the last page.
type Result struct {
	Items      []*model.IndexedDoc
	NextCursor string
}

// Search runs the full C7 pipeline: visibility intersection, candidate-set
// evaluation, strategy choice, and the chosen scan.
func Search(idx Index, evalCtx eval.Context, opts Options, requester model.Requester) (Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	allowed := idx.VisibilityAllowed(requester.Authenticated, requester.Groups)

	var candidates *roaring.Bitmap
	if opts.Filter == nil {
		candidates = allowed
	} else {
		bm, err := eval.Eval(opts.Filter, evalCtx)
		if err != nil {
			return Result{}, err
		}
		bm.And(allowed)
		candidates = bm
	}

	if candidates.IsEmpty() {
		return Result{}, nil
	}

	universeCard := idx.Universe().GetCardinality()
	c := candidates.GetCardinality()
	if c <= SelectiveThreshold || c*SelectiveFraction <= universeCard {
		return selectiveMaterialize(idx, candidates, limit, opts.Cursor, opts.Q), nil
	}
	return orderedScan(idx, candidates, limit, opts.Cursor, opts.Q), nil
}

// matches reports whether doc passes the cursor and q filters of step 4.
func matches(doc *model.IndexedDoc, cursor *Cursor, qFold string) bool {
	if cursor != nil && !after(doc.Entry.UpdatedAt, doc.Entry.ID, *cursor) {
		return false
	}
	if qFold != "" {
		if !strings.Contains(doc.NameFold, qFold) && !strings.Contains(doc.DescFold, qFold) {
			return false
		}
	}
	return true
}

// orderedScan implements step 4a: iterate the precomputed sort vector,
// skipping docs outside candidates, then applying the cursor and q filters.
func orderedScan(idx Index, candidates *roaring.Bitmap, limit int, cursor *Cursor, q string) Result {
	sortOrder, _ := idx.SortOrder()
	qFold := model.FoldASCII(q)

	items := make([]*model.IndexedDoc, 0, limit)
	for _, docID := range sortOrder {
		if !candidates.Contains(docID) {
			continue
		}
		doc := idx.GetDoc(docID)
		if doc == nil {
			continue
		}
		if !matches(doc, cursor, qFold) {
			continue
		}
		items = append(items, doc)
		if len(items) == limit {
			break
		}
	}

	var next string
	if len(items) == limit {
		last := items[len(items)-1]
		next = EncodeCursor(Cursor{UpdatedAt: last.Entry.UpdatedAt, ID: last.Entry.ID})
	}
	return Result{Items: items, NextCursor: next}
}

// selectiveMaterialize implements step 4b: iterate the candidate bitmap in
// ascending doc-id order, applying the cursor and q filters, and keep the
// best `limit` docs under the sort order in a bounded buffer keyed by rank.
func selectiveMaterialize(idx Index, candidates *roaring.Bitmap, limit int, cursor *Cursor, q string) Result {
	_, rank := idx.SortOrder()
	qFold := model.FoldASCII(q)

	type ranked struct {
		doc  *model.IndexedDoc
		rank int
	}
	buf := make([]ranked, 0, limit)

	it := candidates.Iterator()
	for it.HasNext() {
		docID := it.Next()
		doc := idx.GetDoc(docID)
		if doc == nil {
			continue
		}
		if !matches(doc, cursor, qFold) {
			continue
		}
		r := ranked{doc: doc, rank: rank[docID]}

		if len(buf) < limit {
			buf = append(buf, r)
			continue
		}
		// buf is full: replace the worst-ranked (largest rank) entry if r
		// sorts earlier.
		worst := 0
		for i := 1; i < len(buf); i++ {
			if buf[i].rank > buf[worst].rank {
				worst = i
			}
		}
		if r.rank < buf[worst].rank {
			buf[worst] = r
		}
	}

	sort.Slice(buf, func(i, j int) bool { return buf[i].rank < buf[j].rank })

	items := make([]*model.IndexedDoc, len(buf))
	for i, r := range buf {
		items[i] = r.doc
	}

	var next string
	if len(items) == limit {
		last := items[len(items)-1]
		next = EncodeCursor(Cursor{UpdatedAt: last.Entry.UpdatedAt, ID: last.Entry.ID})
	}
	return Result{Items: items, NextCursor: next}
}
