package filter

import "testing"

func TestParseEq(t *testing.T) {
	n, err := Parse("(type=skill)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != KindEq || n.Key != "type" || n.Value != "skill" {
		t.Fatalf("got %+v", n)
	}
}

func TestParsePresence(t *testing.T) {
	n, err := Parse("(attrs.tag=*)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != KindPresent || n.Key != "attrs.tag" {
		t.Fatalf("got %+v", n)
	}
}

func TestParseAndOr(t *testing.T) {
	n, err := Parse("(&(type=skill)(name=foo))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != KindAnd || len(n.Children) != 2 {
		t.Fatalf("got %+v", n)
	}

	n, err = Parse("(|(type=skill)(type=tool))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != KindOr || len(n.Children) != 2 {
		t.Fatalf("got %+v", n)
	}
}

func TestParseNot(t *testing.T) {
	n, err := Parse("(!(type=skill))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != KindNot || n.Child.Key != "type" {
		t.Fatalf("got %+v", n)
	}
}

func TestParseEmptyAndRejected(t *testing.T) {
	if _, err := Parse("(&)"); err == nil {
		t.Fatal("expected error for empty AND")
	}
}

func TestParseUnescapedParenRejected(t *testing.T) {
	_, err := Parse("(name=a(b)")
	if err == nil {
		t.Fatal("expected error")
	}
	ife, ok := err.(*InvalidFilterError)
	if !ok {
		t.Fatalf("expected *InvalidFilterError, got %T", err)
	}
	if ife.Pos != 7 {
		t.Fatalf("expected pos 7, got %d", ife.Pos)
	}
}

func TestParseEscapes(t *testing.T) {
	n, err := Parse(`(name=a\(b\)c)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Value != "a(b)c" {
		t.Fatalf("got %q", n.Value)
	}
}

func TestParseTrailingCharactersRejected(t *testing.T) {
	if _, err := Parse("(type=skill)junk"); err == nil {
		t.Fatal("expected error for trailing characters")
	}
}

func TestParseValuePos(t *testing.T) {
	n, err := Parse("(rev=abc)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Value != "abc" || n.ValuePos != 5 {
		t.Fatalf("got value=%q pos=%d", n.Value, n.ValuePos)
	}
}

func TestParseTrailingWhitespaceTrimmed(t *testing.T) {
	n, err := Parse("(name=foo  )")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Value != "foo" {
		t.Fatalf("got %q", n.Value)
	}
}
