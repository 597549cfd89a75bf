package posting

import "testing"

func TestEqPostingAddRemove(t *testing.T) {
	s := New()
	tok := EqToken("top", "type", "skill")

	s.AddEq(tok, 1)
	s.AddEq(tok, 2)

	b := s.GetEq(tok)
	if b == nil || b.GetCardinality() != 2 {
		t.Fatalf("expected 2 docs in posting, got %v", b)
	}

	s.RemoveEq(tok, 1)
	s.RemoveEq(tok, 2)

	if s.GetEq(tok) != nil {
		t.Fatal("expected posting to be deleted once empty")
	}
	if s.EqTokenCount() != 0 {
		t.Fatalf("expected 0 tokens after cleanup, got %d", s.EqTokenCount())
	}
}

func TestPresencePosting(t *testing.T) {
	s := New()
	tok := PresenceToken("attr", "tag")
	s.AddPresence(tok, 5)

	b := s.GetPresence(tok)
	if b == nil || !b.Contains(5) {
		t.Fatalf("expected doc 5 present, got %v", b)
	}
}

func TestTokenDistinctScopeDoesNotCollide(t *testing.T) {
	top := EqToken("top", "type", "skill")
	attr := EqToken("attr", "type", "skill")
	if top == attr {
		t.Fatal("expected scope to distinguish tokens")
	}
}

func TestVisibilitySetAllowed(t *testing.T) {
	v := NewVisibilitySet()
	v.Public.Add(1)
	v.Internal.Add(2)
	v.AddGroup("eng", 3)

	anon := v.Allowed(false, nil)
	if !anon.Contains(1) || anon.Contains(2) || anon.Contains(3) {
		t.Fatalf("anonymous should only see public, got %v", anon.ToArray())
	}

	authed := v.Allowed(true, nil)
	if !authed.Contains(1) || !authed.Contains(2) || authed.Contains(3) {
		t.Fatalf("authenticated should see public+internal, got %v", authed.ToArray())
	}

	member := v.Allowed(false, []string{"eng"})
	if !member.Contains(1) || !member.Contains(3) || member.Contains(2) {
		t.Fatalf("group member should see public+group, got %v", member.ToArray())
	}
}

func TestVisibilityGroupCleanupOnEmpty(t *testing.T) {
	v := NewVisibilitySet()
	v.AddGroup("eng", 1)
	v.RemoveGroup("eng", 1)
	if _, ok := v.Groups["eng"]; ok {
		t.Fatal("expected empty group bitmap to be deleted")
	}
}
