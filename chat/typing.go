package chat

import (
	"sort"
	"sync"
	"time"
)

const (
	// Quiet period after the last local keystroke before typingStop goes
	// out. Matches the original UI behaviour.
	defaultTypingDebounce = 2 * time.Second
	// Defensive expiry for remote indicators, so a lost stop signal cannot
	// leave a stale "typing..." forever. Slightly longer than the
	// sender-side debounce.
	defaultTypingExpiry = 3 * time.Second
)

type typingEntry struct {
	receiver string
	timer    *time.Timer
}

// TypingCoordinator handles ephemeral typing signals in both directions.
// Signals are lossy and best-effort: no retry, no ordering guarantee,
// nothing persisted.
type TypingCoordinator struct {
	mu      sync.Mutex
	selfID  string
	emitter Emitter

	debounce time.Duration
	expiry   time.Duration

	localTimer    *time.Timer
	localReceiver string

	// One expiry timer per remote sender, so concurrent typers in a group
	// don't clobber each other.
	active map[string]*typingEntry

	onChange func()
}

func NewTypingCoordinator(selfID string, emitter Emitter) *TypingCoordinator {
	return &TypingCoordinator{
		selfID:   selfID,
		emitter:  emitter,
		debounce: defaultTypingDebounce,
		expiry:   defaultTypingExpiry,
		active:   make(map[string]*typingEntry),
	}
}

// SetTimings overrides the debounce and expiry windows. Test hook.
func (t *TypingCoordinator) SetTimings(debounce, expiry time.Duration) {
	t.mu.Lock()
	t.debounce = debounce
	t.expiry = expiry
	t.mu.Unlock()
}

// OnChange registers a callback fired whenever the active set changes from
// a timer or a remote signal.
func (t *TypingCoordinator) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// LocalInput reacts to a local keystroke. The first keystroke emits a
// typing start; rapid consecutive input only resets the stop timer instead
// of re-emitting.
func (t *TypingCoordinator) LocalInput(target Target) {
	if target.Kind == TargetNone {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.localTimer != nil && t.localReceiver == target.ID {
		t.localTimer.Reset(t.debounce)
		return
	}

	// Target switched mid-composition: stop the old one first.
	if t.localTimer != nil {
		t.localTimer.Stop()
		t.emitStopLocked(t.localReceiver)
	}

	t.localReceiver = target.ID
	_ = t.emitter.Emit(EventTyping, TypingPayload{Sender: t.selfID, Receiver: target.ID})

	receiver := target.ID
	t.localTimer = time.AfterFunc(t.debounce, func() {
		t.mu.Lock()
		if t.localReceiver == receiver {
			t.localTimer = nil
			t.localReceiver = ""
			t.emitStopLocked(receiver)
		}
		t.mu.Unlock()
	})
}

func (t *TypingCoordinator) emitStopLocked(receiver string) {
	_ = t.emitter.Emit(EventStopTyping, StopTypingPayload{Sender: t.selfID, Receiver: receiver})
}

// RemoteTyping records a peer's typing start and arms its expiry timer.
func (t *TypingCoordinator) RemoteTyping(senderID, receiverID string) {
	if senderID == "" || senderID == t.selfID {
		return
	}
	t.mu.Lock()
	if e, ok := t.active[senderID]; ok {
		e.receiver = receiverID
		e.timer.Reset(t.expiry)
		t.mu.Unlock()
		return
	}
	e := &typingEntry{receiver: receiverID}
	e.timer = time.AfterFunc(t.expiry, func() { t.expire(senderID) })
	t.active[senderID] = e
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// RemoteStop removes a peer immediately.
func (t *TypingCoordinator) RemoteStop(senderID string) {
	t.mu.Lock()
	e, ok := t.active[senderID]
	if ok {
		e.timer.Stop()
		delete(t.active, senderID)
	}
	fn := t.onChange
	t.mu.Unlock()

	if ok && fn != nil {
		fn()
	}
}

func (t *TypingCoordinator) expire(senderID string) {
	t.mu.Lock()
	_, ok := t.active[senderID]
	if ok {
		delete(t.active, senderID)
	}
	fn := t.onChange
	t.mu.Unlock()

	if ok && fn != nil {
		fn()
	}
}

// Active returns the senders currently typing to the given target, sorted
// for stable display.
func (t *TypingCoordinator) Active(target Target, selfID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.active))
	for sender, e := range t.active {
		switch target.Kind {
		case TargetDirect:
			if sender == target.ID && e.receiver == selfID {
				out = append(out, sender)
			}
		case TargetGroup:
			if e.receiver == target.ID {
				out = append(out, sender)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Close stops every timer. Pending local stop signals are dropped, not
// flushed; the receiving side's expiry covers that.
func (t *TypingCoordinator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.localTimer != nil {
		t.localTimer.Stop()
		t.localTimer = nil
	}
	for id, e := range t.active {
		e.timer.Stop()
		delete(t.active, id)
	}
}
