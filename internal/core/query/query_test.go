package query

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edirooss/capdir/internal/core/eval"
	"github.com/edirooss/capdir/internal/core/filter"
	"github.com/edirooss/capdir/internal/model"
)

// fakeIndex is a minimal Index + eval.Context for testing the planner in
// isolation from the registry.
type fakeIndex struct {
	docs      map[uint32]*model.IndexedDoc
	universe  *roaring.Bitmap
	sortOrder []uint32
	rank      map[uint32]int
	allowed   *roaring.Bitmap
}

func newFakeIndex(docs ...*model.IndexedDoc) *fakeIndex {
	f := &fakeIndex{
		docs:     make(map[uint32]*model.IndexedDoc),
		universe: roaring.New(),
		rank:     make(map[uint32]int),
		allowed:  roaring.New(),
	}
	for _, d := range docs {
		f.docs[d.DocID] = d
		f.universe.Add(d.DocID)
		f.allowed.Add(d.DocID)
	}
	// descending (updated_at, id) — test fixtures append in that order.
	for i, d := range docs {
		f.sortOrder = append(f.sortOrder, d.DocID)
		f.rank[d.DocID] = i
	}
	return f
}

func (f *fakeIndex) Universe() *roaring.Bitmap { return f.universe }
func (f *fakeIndex) SortOrder() ([]uint32, map[uint32]int) { return f.sortOrder, f.rank }
func (f *fakeIndex) VisibilityAllowed(authenticated bool, groups []string) *roaring.Bitmap {
	return f.allowed.Clone()
}
func (f *fakeIndex) GetDoc(docID uint32) *model.IndexedDoc { return f.docs[docID] }

func (f *fakeIndex) EqPosting(node *filter.Node) (*roaring.Bitmap, error)       { return nil, nil }
func (f *fakeIndex) PresencePosting(node *filter.Node) (*roaring.Bitmap, error) { return nil, nil }

var _ eval.Context = (*fakeIndex)(nil)
var _ Index = (*fakeIndex)(nil)

func doc(docID uint32, id, updatedAt string) *model.IndexedDoc {
	e := &model.Entry{ID: id, Name: "Entry " + id, UpdatedAt: updatedAt}
	return model.NewIndexedDoc(docID, e)
}

func TestSearchCursorPagination(t *testing.T) {
	// Five public docs with strictly increasing updated_at; sort order is
	// already descending (i5 first).
	idx := newFakeIndex(
		doc(5, "i5", "t5"),
		doc(4, "i4", "t4"),
		doc(3, "i3", "t3"),
		doc(2, "i2", "t2"),
		doc(1, "i1", "t1"),
	)

	res, err := Search(idx, idx, Options{Limit: 2}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 || res.Items[0].Entry.ID != "i5" || res.Items[1].Entry.ID != "i4" {
		t.Fatalf("got %+v", res.Items)
	}
	if res.NextCursor == "" {
		t.Fatal("expected non-null cursor")
	}

	cur, err := DecodeCursor(res.NextCursor)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := Search(idx, idx, Options{Limit: 2, Cursor: &cur}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res2.Items) != 2 || res2.Items[0].Entry.ID != "i3" || res2.Items[1].Entry.ID != "i2" {
		t.Fatalf("got %+v", res2.Items)
	}

	cur2, err := DecodeCursor(res2.NextCursor)
	if err != nil {
		t.Fatal(err)
	}
	res3, err := Search(idx, idx, Options{Limit: 2, Cursor: &cur2}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res3.Items) != 1 || res3.Items[0].Entry.ID != "i1" {
		t.Fatalf("got %+v", res3.Items)
	}
	if res3.NextCursor != "" {
		t.Fatal("expected null cursor on final page")
	}
}

func TestSearchEmptyCandidatesReturnsEmptyResult(t *testing.T) {
	idx := newFakeIndex()
	res, err := Search(idx, idx, Options{Limit: 10}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 0 || res.NextCursor != "" {
		t.Fatalf("got %+v", res)
	}
}

func TestSearchQSubstringFilter(t *testing.T) {
	idx := newFakeIndex(
		doc(1, "a", "t2"),
		doc(2, "b", "t1"),
	)
	idx.docs[1].NameFold = "widget search tool"
	idx.docs[2].NameFold = "other entry"

	res, err := Search(idx, idx, Options{Limit: 10, Q: "Search"}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Entry.ID != "a" {
		t.Fatalf("got %+v", res.Items)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{UpdatedAt: "2026-01-01T00:00:00Z", ID: "x"}
	s := EncodeCursor(c)
	got, err := DecodeCursor(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != c {
		t.Fatalf("got %+v want %+v", got, c)
	}
}

func TestDecodeCursorInvalidBytes(t *testing.T) {
	if _, err := DecodeCursor("not-valid-base64!!"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSelectiveMaterializeStrategyForSmallCandidates(t *testing.T) {
	idx := newFakeIndex(doc(1, "a", "t1"))
	res, err := Search(idx, idx, Options{Limit: 10}, model.Anonymous)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("got %+v", res.Items)
	}
}
