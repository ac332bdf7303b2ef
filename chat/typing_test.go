package chat

import (
	"testing"
	"time"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTypingLocalDebounce(t *testing.T) {
	em := &fakeEmitter{}
	tc := NewTypingCoordinator("u1", em)
	tc.SetTimings(50*time.Millisecond, 80*time.Millisecond)
	defer tc.Close()

	target := Target{Kind: TargetDirect, ID: "u2"}
	tc.LocalInput(target)
	tc.LocalInput(target)
	tc.LocalInput(target)

	if got := em.count(EventTyping); got != 1 {
		t.Fatalf("rapid input should emit one typing start, got %d", got)
	}
	waitUntil(t, time.Second, func() bool { return em.count(EventStopTyping) == 1 })
}

func TestTypingLocalTargetSwitch(t *testing.T) {
	em := &fakeEmitter{}
	tc := NewTypingCoordinator("u1", em)
	tc.SetTimings(time.Minute, time.Minute) // keep timers out of the way
	defer tc.Close()

	tc.LocalInput(Target{Kind: TargetDirect, ID: "u2"})
	tc.LocalInput(Target{Kind: TargetGroup, ID: "g1"})

	if got := em.count(EventTyping); got != 2 {
		t.Fatalf("target switch should start typing on the new target, got %d starts", got)
	}
	// The old target gets a stop immediately, not after the debounce.
	if got := em.count(EventStopTyping); got != 1 {
		t.Fatalf("target switch should stop the old target, got %d stops", got)
	}
}

func TestTypingLocalNoTarget(t *testing.T) {
	em := &fakeEmitter{}
	tc := NewTypingCoordinator("u1", em)
	defer tc.Close()

	tc.LocalInput(Target{})
	if em.total() != 0 {
		t.Fatal("input with no target must emit nothing")
	}
}

func TestTypingRemoteLifecycle(t *testing.T) {
	tc := NewTypingCoordinator("u1", &fakeEmitter{})
	tc.SetTimings(50*time.Millisecond, 60*time.Millisecond)
	defer tc.Close()

	direct := Target{Kind: TargetDirect, ID: "u2"}

	tc.RemoteTyping("u2", "u1")
	if got := tc.Active(direct, "u1"); len(got) != 1 || got[0] != "u2" {
		t.Fatalf("want [u2] typing, got %v", got)
	}

	tc.RemoteStop("u2")
	if got := tc.Active(direct, "u1"); len(got) != 0 {
		t.Fatalf("stop should clear the indicator, got %v", got)
	}

	// A lost stop signal: the expiry timer clears it.
	tc.RemoteTyping("u2", "u1")
	waitUntil(t, time.Second, func() bool { return len(tc.Active(direct, "u1")) == 0 })
}

func TestTypingRemoteScoping(t *testing.T) {
	tc := NewTypingCoordinator("u1", &fakeEmitter{})
	tc.SetTimings(time.Minute, time.Minute)
	defer tc.Close()

	tc.RemoteTyping("u2", "u1") // direct to us
	tc.RemoteTyping("u3", "g1") // typing in a group
	tc.RemoteTyping("u1", "u2") // our own echo, ignored

	if got := tc.Active(Target{Kind: TargetDirect, ID: "u2"}, "u1"); len(got) != 1 || got[0] != "u2" {
		t.Fatalf("direct view wrong: %v", got)
	}
	if got := tc.Active(Target{Kind: TargetGroup, ID: "g1"}, "u1"); len(got) != 1 || got[0] != "u3" {
		t.Fatalf("group view wrong: %v", got)
	}
	if got := tc.Active(Target{Kind: TargetDirect, ID: "u3"}, "u1"); len(got) != 0 {
		t.Fatalf("group typer must not appear in a direct view: %v", got)
	}
	if got := tc.Active(Target{}, "u1"); len(got) != 0 {
		t.Fatalf("no target shows no typers: %v", got)
	}
}

func TestTypingOnChange(t *testing.T) {
	tc := NewTypingCoordinator("u1", &fakeEmitter{})
	tc.SetTimings(time.Minute, time.Minute)
	defer tc.Close()

	changes := make(chan struct{}, 8)
	tc.OnChange(func() { changes <- struct{}{} })

	tc.RemoteTyping("u2", "u1")
	tc.RemoteStop("u2")
	tc.RemoteStop("u2") // already gone, no callback

	if len(changes) != 2 {
		t.Fatalf("want 2 change notifications, got %d", len(changes))
	}
}
