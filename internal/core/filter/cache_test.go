package filter

import "testing"

func TestCacheHitReturnsSameAST(t *testing.T) {
	c := NewCache(4)
	n1, err := c.Get("(type=skill)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n2, err := c.Get("(type=skill)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n1 != n2 {
		t.Fatalf("expected cached AST to be returned by pointer identity")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
}

func TestCacheDoesNotCacheFailedParse(t *testing.T) {
	c := NewCache(4)
	if _, err := c.Get("(&)"); err == nil {
		t.Fatal("expected parse error")
	}
	if c.Len() != 0 {
		t.Fatalf("expected failed parse not cached, got %d entries", c.Len())
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)
	if _, err := c.Get("(type=a)"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("(type=b)"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("(type=c)"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected capacity-bounded cache, got %d entries", c.Len())
	}
}
