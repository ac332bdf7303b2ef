package gateway

import (
	"testing"

	"campuschat/tools/errs"
)

func TestGroupTableCreate(t *testing.T) {
	g := NewGroupTable()

	if err := g.Create("g1", "study", []string{"u1", "u2"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := g.Create("g1", "other", []string{"u3"}); !errs.Is(err, errs.ErrGroupCreation) {
		t.Fatalf("duplicate id must be rejected, got %v", err)
	}
	// The original record is untouched by the rejected attempt.
	if !g.IsMember("g1", "u1") || g.IsMember("g1", "u3") {
		t.Fatal("rejected create mutated the table")
	}
}

func TestGroupTableCreateValidation(t *testing.T) {
	g := NewGroupTable()
	cases := []struct {
		id, name string
		members  []string
	}{
		{"", "study", []string{"u1"}},
		{"g1", "", []string{"u1"}},
		{"g1", "study", nil},
	}
	for _, c := range cases {
		if err := g.Create(c.id, c.name, c.members); !errs.Is(err, errs.ErrValidation) {
			t.Fatalf("create(%q,%q,%v): want validation error, got %v", c.id, c.name, c.members, err)
		}
	}
}

func TestGroupTableJoin(t *testing.T) {
	g := NewGroupTable()
	_ = g.Create("g1", "study", []string{"u1", "u2"})

	if err := g.Join("g1", "u1"); err != nil {
		t.Fatalf("member join: %v", err)
	}
	if err := g.Join("g1", "u9"); !errs.Is(err, errs.ErrGroupCreation) {
		t.Fatalf("non-member join must fail, got %v", err)
	}
	if err := g.Join("nope", "u1"); !errs.Is(err, errs.ErrGroupCreation) {
		t.Fatalf("unknown group join must fail, got %v", err)
	}
}

func TestGroupTableMembers(t *testing.T) {
	g := NewGroupTable()
	_ = g.Create("g1", "study", []string{"u1", "u2", ""})

	if got := len(g.Members("g1")); got != 2 {
		t.Fatalf("blank members should be dropped, got %d", got)
	}
	if g.Members("nope") != nil {
		t.Fatal("unknown group must return nil")
	}
}
