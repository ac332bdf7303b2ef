package chat

import (
	"sync"
	"testing"
)

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
	fail   error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

func (f *fakeEmitter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var testSelf = Identity{UserID: "u1", Username: "alice", ProfileName: "Alice"}

func TestLedgerAppendDedup(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})

	m := Message{ID: "m1", Sender: "u2", Receiver: "u1", Body: "hi", Kind: KindDirect}
	if !l.Append(m) {
		t.Fatal("first append should succeed")
	}
	if l.Append(m) {
		t.Fatal("duplicate id should be discarded")
	}
	if got := l.Len(); got != 1 {
		t.Fatalf("want 1 entry, got %d", got)
	}
}

func TestLedgerAppendEmptyID(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})
	if l.Append(Message{Body: "no id"}) {
		t.Fatal("message without id must not be appended")
	}
}

func TestLedgerAckMonotonic(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})
	l.Append(Message{ID: "m1", Sender: "u1", Receiver: "u2", Body: "hi", Status: StatusSending})

	if !l.MarkAcknowledged("m1") {
		t.Fatal("first ack should transition")
	}
	if l.MarkAcknowledged("m1") {
		t.Fatal("repeated ack must be a no-op")
	}
	if got := l.All()[0].Status; got != StatusSent {
		t.Fatalf("want status %q, got %q", StatusSent, got)
	}
}

func TestLedgerAckUnknownID(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})
	if l.MarkAcknowledged("never-seen") {
		t.Fatal("ack for unrecorded id must be ignored")
	}
}

func TestLedgerSendTextOptimistic(t *testing.T) {
	em := &fakeEmitter{}
	l := NewLedger(testSelf, em)

	m, err := l.SendText("hi", Target{Kind: TargetDirect, ID: "u2"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Status != StatusSending {
		t.Fatalf("optimistic echo should be sending, got %q", m.Status)
	}
	if m.Sender != "u1" || m.Receiver != "u2" || m.Kind != KindDirect {
		t.Fatalf("bad envelope: %+v", m)
	}
	if m.SenderName != "Alice" {
		t.Fatalf("sender name should come from the profile, got %q", m.SenderName)
	}
	if l.Len() != 1 {
		t.Fatal("echo must be appended before the ack arrives")
	}
	if em.count(EventSendMessage) != 1 {
		t.Fatal("expected one outbound sendMessage")
	}

	// The gateway echoes the same id back; reconcile, don't duplicate.
	l.Append(m)
	l.MarkAcknowledged(m.ID)
	all := l.All()
	if len(all) != 1 {
		t.Fatalf("server echo duplicated the entry: %d", len(all))
	}
	if all[0].Status != StatusSent {
		t.Fatalf("want %q after ack, got %q", StatusSent, all[0].Status)
	}
}

func TestLedgerSendWithoutTarget(t *testing.T) {
	em := &fakeEmitter{}
	l := NewLedger(testSelf, em)

	if _, err := l.SendText("hi", Target{}); err == nil {
		t.Fatal("send with no target must fail")
	}
	if _, err := l.SendText("", Target{Kind: TargetDirect, ID: "u2"}); err == nil {
		t.Fatal("empty body must fail")
	}
	if em.total() != 0 {
		t.Fatal("validation failures must emit nothing")
	}
	if l.Len() != 0 {
		t.Fatal("validation failures must not touch the ledger")
	}
}

func TestLedgerSendAttachment(t *testing.T) {
	em := &fakeEmitter{}
	l := NewLedger(testSelf, em)

	file := FilePayload{Name: "notes.txt", Type: "text/plain", Data: "data:text/plain;base64,aGk="}
	m, err := l.SendAttachment(file, Target{Kind: TargetGroup, ID: "g1"})
	if err != nil {
		t.Fatalf("send attachment: %v", err)
	}
	if !m.IsFile() || m.MessageType != "file" {
		t.Fatalf("attachment envelope wrong: %+v", m)
	}
	if m.Kind != KindGroup {
		t.Fatalf("want group kind, got %q", m.Kind)
	}
	if em.count(EventSendFile) != 1 {
		t.Fatal("expected one outbound sendFile")
	}
}

func TestLedgerArrivalOrder(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})
	// Timestamps deliberately out of order: arrival order wins.
	l.Append(Message{ID: "a", Sender: "u2", Receiver: "u1", Timestamp: 300})
	l.Append(Message{ID: "b", Sender: "u2", Receiver: "u1", Timestamp: 100})
	l.Append(Message{ID: "c", Sender: "u2", Receiver: "u1", Timestamp: 200})

	all := l.All()
	for i, want := range []string{"a", "b", "c"} {
		if all[i].ID != want {
			t.Fatalf("arrival order broken at %d: got %s want %s", i, all[i].ID, want)
		}
	}
}

func TestLedgerVisibleFilter(t *testing.T) {
	l := NewLedger(testSelf, &fakeEmitter{})
	sel := NewSelector("u1")

	l.Append(Message{ID: "m1", Sender: "u1", Receiver: "u2", Kind: KindDirect})  // direct to u2
	l.Append(Message{ID: "m2", Sender: "u3", Receiver: "u1", Kind: KindDirect})  // direct from u3
	l.Append(Message{ID: "m3", Sender: "u3", Receiver: "g1", Kind: KindGroup})   // group g1
	l.Append(Message{ID: "m4", Sender: "u2", Receiver: "g1", Kind: KindGroup})   // group g1
	l.Append(Message{ID: "m5", Sender: "u2", Receiver: "u3", Kind: KindDirect})  // not ours

	sel.SelectDirect("u2")
	got := idsOf(l.Visible(sel))
	if len(got) != 1 || got[0] != "m1" {
		t.Fatalf("Direct(u2) view wrong: %v", got)
	}

	// A group message arriving while a direct chat is open is recorded but
	// hidden; selecting the group reveals it.
	sel.SelectGroup("g1")
	got = idsOf(l.Visible(sel))
	if len(got) != 2 || got[0] != "m3" || got[1] != "m4" {
		t.Fatalf("Group(g1) view wrong: %v", got)
	}

	sel.Clear()
	if n := len(l.Visible(sel)); n != 0 {
		t.Fatalf("no target should show nothing, got %d", n)
	}
}

func idsOf(ms []Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
