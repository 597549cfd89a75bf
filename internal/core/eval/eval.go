// Package eval implements the filter evaluator (C5): it walks a filter AST
// and produces a bitmap of matching doc ids, reordering AND children by
// estimated cardinality and short-circuiting once the accumulator is
// empty.
package eval

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edirooss/capdir/internal/core/filter"
)

// Context is the evaluator's view of the index: posting lookups (already
// key-resolved) and the universe bitmap. Implementations own the bitmaps
// returned by EqPosting and PresencePosting — the evaluator treats them as
// borrowed and never mutates them directly.
type Context interface {
	// EqPosting returns the equality posting for an eq node, or nil. The
	// node's raw key (e.g. "type", "attrs.tag", "tag") is resolved by the
	// Context implementation; a field with typed semantics (e.g. the
	// integer-valued "rev") that fails to parse its node.Value reports an
	// *filter.InvalidFilterError positioned at node.ValuePos.
	EqPosting(node *filter.Node) (*roaring.Bitmap, error)
	// PresencePosting returns the presence posting for a present node, or nil.
	PresencePosting(node *filter.Node) (*roaring.Bitmap, error)
	// Universe returns the bitmap of all live doc ids.
	Universe() *roaring.Bitmap
}

// result distinguishes a bitmap borrowed from posting storage (must not be
// mutated) from one owned by the evaluator (safe to mutate in place).
type result struct {
	bm    *roaring.Bitmap
	owned bool
}

// own returns a bitmap the caller may freely mutate, cloning first if the
// result was borrowed.
func (r result) own() *roaring.Bitmap {
	if r.owned {
		return r.bm
	}
	return r.bm.Clone()
}

// Eval evaluates an AST against ctx and returns an owned bitmap of
// matching doc ids (spec §4.5). For equivalent ASTs and an unchanged
// posting snapshot, results are bit-identical.
func Eval(node *filter.Node, ctx Context) (*roaring.Bitmap, error) {
	r, err := evalNode(node, ctx)
	if err != nil {
		return nil, err
	}
	return r.own(), nil
}

func evalNode(node *filter.Node, ctx Context) (result, error) {
	switch node.Kind {
	case filter.KindEq:
		b, err := ctx.EqPosting(node)
		if err != nil {
			return result{}, err
		}
		if b == nil {
			return result{bm: roaring.New(), owned: true}, nil
		}
		return result{bm: b, owned: false}, nil

	case filter.KindPresent:
		b, err := ctx.PresencePosting(node)
		if err != nil {
			return result{}, err
		}
		if b == nil {
			return result{bm: roaring.New(), owned: true}, nil
		}
		return result{bm: b, owned: false}, nil

	case filter.KindAnd:
		return evalAnd(node, ctx)

	case filter.KindOr:
		return evalOr(node, ctx)

	case filter.KindNot:
		child, err := evalNode(node.Child, ctx)
		if err != nil {
			return result{}, err
		}
		out := ctx.Universe().Clone()
		out.AndNot(child.bm)
		return result{bm: out, owned: true}, nil

	default:
		return result{}, fmt.Errorf("eval: unknown node kind %d", node.Kind)
	}
}

// evalAnd reorders children by ascending estimated cardinality, evaluates
// left to right intersecting in place, and short-circuits as soon as the
// accumulator is empty.
func evalAnd(node *filter.Node, ctx Context) (result, error) {
	universeCard := ctx.Universe().GetCardinality()

	type childEst struct {
		node *filter.Node
		est  uint64
	}
	ests := make([]childEst, len(node.Children))
	for i, c := range node.Children {
		e, err := estimate(c, ctx, universeCard)
		if err != nil {
			return result{}, err
		}
		ests[i] = childEst{node: c, est: e}
	}
	sort.SliceStable(ests, func(i, j int) bool { return ests[i].est < ests[j].est })

	if len(ests) == 1 {
		return evalNode(ests[0].node, ctx)
	}

	first, err := evalNode(ests[0].node, ctx)
	if err != nil {
		return result{}, err
	}
	acc := first.own()
	for _, ce := range ests[1:] {
		if acc.IsEmpty() {
			break
		}
		r, err := evalNode(ce.node, ctx)
		if err != nil {
			return result{}, err
		}
		acc.And(r.bm)
	}
	return result{bm: acc, owned: true}, nil
}

// evalOr evaluates every child and unions in place; order is immaterial.
func evalOr(node *filter.Node, ctx Context) (result, error) {
	acc := roaring.New()
	for _, c := range node.Children {
		r, err := evalNode(c, ctx)
		if err != nil {
			return result{}, err
		}
		acc.Or(r.bm)
	}
	return result{bm: acc, owned: true}, nil
}

// estimate computes a child's estimated cardinality without evaluating it,
// per spec §4.5: eq/present is the posting size (0 if absent); and is the
// minimum of children; or is the sum saturated at universe size; not is
// universe minus the child's estimate.
func estimate(node *filter.Node, ctx Context, universeCard uint64) (uint64, error) {
	switch node.Kind {
	case filter.KindEq:
		b, err := ctx.EqPosting(node)
		if err != nil {
			return 0, err
		}
		if b == nil {
			return 0, nil
		}
		return b.GetCardinality(), nil

	case filter.KindPresent:
		b, err := ctx.PresencePosting(node)
		if err != nil {
			return 0, err
		}
		if b == nil {
			return 0, nil
		}
		return b.GetCardinality(), nil

	case filter.KindAnd:
		min := universeCard
		for _, c := range node.Children {
			e, err := estimate(c, ctx, universeCard)
			if err != nil {
				return 0, err
			}
			if e < min {
				min = e
			}
		}
		return min, nil

	case filter.KindOr:
		var sum uint64
		for _, c := range node.Children {
			e, err := estimate(c, ctx, universeCard)
			if err != nil {
				return 0, err
			}
			sum += e
			if sum >= universeCard {
				return universeCard, nil
			}
		}
		return sum, nil

	case filter.KindNot:
		e, err := estimate(node.Child, ctx, universeCard)
		if err != nil {
			return 0, err
		}
		if e >= universeCard {
			return 0, nil
		}
		return universeCard - e, nil

	default:
		return 0, fmt.Errorf("eval: unknown node kind %d", node.Kind)
	}
}
