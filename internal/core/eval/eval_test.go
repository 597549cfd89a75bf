package eval

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edirooss/capdir/internal/core/filter"
)

// fakeContext is a minimal eval.Context backed by plain maps, for testing
// the evaluator in isolation from the registry.
type fakeContext struct {
	eq       map[string]*roaring.Bitmap
	presence map[string]*roaring.Bitmap
	universe *roaring.Bitmap
}

func newFakeContext(universe ...uint32) *fakeContext {
	u := roaring.New()
	u.AddMany(universe)
	return &fakeContext{
		eq:       make(map[string]*roaring.Bitmap),
		presence: make(map[string]*roaring.Bitmap),
		universe: u,
	}
}

func (f *fakeContext) put(key, value string, docs ...uint32) {
	b := roaring.New()
	b.AddMany(docs)
	f.eq[key+"="+value] = b
}

func (f *fakeContext) putPresence(key string, docs ...uint32) {
	b := roaring.New()
	b.AddMany(docs)
	f.presence[key] = b
}

func (f *fakeContext) EqPosting(node *filter.Node) (*roaring.Bitmap, error) {
	if node.Key == "rev" {
		return nil, nil
	}
	return f.eq[node.Key+"="+node.Value], nil
}

func (f *fakeContext) PresencePosting(node *filter.Node) (*roaring.Bitmap, error) {
	return f.presence[node.Key], nil
}

func (f *fakeContext) Universe() *roaring.Bitmap { return f.universe }

func TestEvalEq(t *testing.T) {
	ctx := newFakeContext(1, 2, 3)
	ctx.put("type", "skill", 1, 2)

	node, _ := filter.Parse("(type=skill)")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.GetCardinality() != 2 || !b.Contains(1) || !b.Contains(2) {
		t.Fatalf("got %v", b.ToArray())
	}
}

func TestEvalAndIntersects(t *testing.T) {
	ctx := newFakeContext(1, 2, 3, 4)
	ctx.put("type", "skill", 1, 2, 3)
	ctx.put("status", "active", 2, 3, 4)

	node, _ := filter.Parse("(&(type=skill)(status=active))")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.GetCardinality() != 2 || !b.Contains(2) || !b.Contains(3) {
		t.Fatalf("got %v", b.ToArray())
	}
}

func TestEvalAndDoesNotMutatePostings(t *testing.T) {
	ctx := newFakeContext(1, 2, 3, 4)
	ctx.put("type", "skill", 1, 2, 3)
	ctx.put("status", "active", 2, 3, 4)

	node, _ := filter.Parse("(&(type=skill)(status=active))")
	if _, err := Eval(node, ctx); err != nil {
		t.Fatal(err)
	}

	if ctx.eq["type=skill"].GetCardinality() != 3 {
		t.Fatal("evaluator must not mutate borrowed postings")
	}
}

func TestEvalOrUnions(t *testing.T) {
	ctx := newFakeContext(1, 2, 3, 4)
	ctx.put("type", "skill", 1)
	ctx.put("type", "tool", 4)

	node, _ := filter.Parse("(|(type=skill)(type=tool))")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.GetCardinality() != 2 || !b.Contains(1) || !b.Contains(4) {
		t.Fatalf("got %v", b.ToArray())
	}
}

func TestEvalNot(t *testing.T) {
	ctx := newFakeContext(1, 2, 3)
	ctx.put("type", "skill", 1)

	node, _ := filter.Parse("(!(type=skill))")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.GetCardinality() != 2 || !b.Contains(2) || !b.Contains(3) {
		t.Fatalf("got %v", b.ToArray())
	}
}

func TestEvalPresence(t *testing.T) {
	ctx := newFakeContext(1, 2, 3)
	ctx.putPresence("attrs.tag", 1, 3)

	node, _ := filter.Parse("(attrs.tag=*)")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b.GetCardinality() != 2 || !b.Contains(1) || !b.Contains(3) {
		t.Fatalf("got %v", b.ToArray())
	}
}

func TestEvalUnknownTokenEmpty(t *testing.T) {
	ctx := newFakeContext(1, 2, 3)
	node, _ := filter.Parse("(type=nonexistent)")
	b, err := Eval(node, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsEmpty() {
		t.Fatalf("expected empty result, got %v", b.ToArray())
	}
}
