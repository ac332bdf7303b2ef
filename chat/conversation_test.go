package chat

import "testing"

func TestSelectorMatches(t *testing.T) {
	sel := NewSelector("u1")

	mine := &Message{Sender: "u1", Receiver: "u2", Kind: KindDirect}
	theirs := &Message{Sender: "u2", Receiver: "u1", Kind: KindDirect}
	other := &Message{Sender: "u2", Receiver: "u3", Kind: KindDirect}
	group := &Message{Sender: "u2", Receiver: "g1", Kind: KindGroup}

	if sel.Matches(mine) {
		t.Fatal("nothing matches when no target is selected")
	}

	sel.SelectDirect("u2")
	if !sel.Matches(mine) || !sel.Matches(theirs) {
		t.Fatal("both directions of a direct chat must match")
	}
	if sel.Matches(other) {
		t.Fatal("a conversation between two other users must not match")
	}
	if sel.Matches(group) {
		t.Fatal("group traffic must not leak into a direct view")
	}

	sel.SelectGroup("g1")
	if !sel.Matches(group) {
		t.Fatal("group message must match its group view")
	}
	if sel.Matches(theirs) {
		t.Fatal("direct traffic must not leak into a group view")
	}

	sel.Clear()
	if sel.Current().Kind != TargetNone {
		t.Fatal("clear should reset to no target")
	}
}

func TestSelectorSwitchKeepsNothing(t *testing.T) {
	sel := NewSelector("u1")
	sel.SelectDirect("u2")
	sel.SelectGroup("g1")

	got := sel.Current()
	if got.Kind != TargetGroup || got.ID != "g1" {
		t.Fatalf("want group g1, got %+v", got)
	}
}
