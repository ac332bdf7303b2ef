package chat

import (
	"sync"
	"time"

	"campuschat/tools/errs"
	"campuschat/tools/ids"
)

// Emitter is the outbound side of the transport, satisfied by *Session.
type Emitter interface {
	Emit(event string, payload any) error
}

// Ledger is the append-only, deduplicated record of every message and
// attachment seen this session, in arrival order. Entries are never
// deleted; the only mutation is the one-way status transition.
//
// Dedup matters because a send produces a local optimistic echo and the
// gateway echoes the same message back with the same client-generated id:
// the id is the join key between the two.
type Ledger struct {
	mu      sync.RWMutex
	self    Identity
	emitter Emitter
	entries []*Message
	index   map[string]*Message
}

func NewLedger(self Identity, emitter Emitter) *Ledger {
	return &Ledger{
		self:    self,
		emitter: emitter,
		index:   make(map[string]*Message),
	}
}

// Append records a message. Duplicate ids are discarded, not appended.
// Returns whether the message was new.
func (l *Ledger) Append(m Message) bool {
	if m.ID == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[m.ID]; ok {
		return false
	}
	entry := &m
	l.entries = append(l.entries, entry)
	l.index[m.ID] = entry
	return true
}

// MarkAcknowledged flips a message to sent. Repeated acks and acks for ids
// never recorded locally are no-ops.
func (l *Ledger) MarkAcknowledged(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.index[id]
	if !ok {
		return false
	}
	if entry.Status == StatusSent {
		return false
	}
	entry.Status = StatusSent
	return true
}

// SendText appends an optimistic local echo and emits the outbound
// request. The caller sees the message as "sending" before the gateway
// confirms anything.
func (l *Ledger) SendText(body string, target Target) (Message, error) {
	if target.Kind == TargetNone {
		return Message{}, errs.ErrValidation.WrapMsg("no conversation selected")
	}
	if body == "" {
		return Message{}, errs.ErrValidation.WrapMsg("empty message body")
	}
	m := l.newEnvelope(target)
	m.Body = body

	l.Append(m)
	if err := l.emitter.Emit(EventSendMessage, m); err != nil {
		return m, err
	}
	return m, nil
}

// SendAttachment routes an encoded file through the same optimistic path
// as text, as an alternate message body.
func (l *Ledger) SendAttachment(file FilePayload, target Target) (Message, error) {
	if target.Kind == TargetNone {
		return Message{}, errs.ErrValidation.WrapMsg("no conversation selected")
	}
	m := l.newEnvelope(target)
	m.File = &file
	m.MessageType = "file"

	l.Append(m)
	if err := l.emitter.Emit(EventSendFile, m); err != nil {
		return m, err
	}
	return m, nil
}

func (l *Ledger) newEnvelope(target Target) Message {
	kind := KindDirect
	if target.Kind == TargetGroup {
		kind = KindGroup
	}
	return Message{
		ID:         ids.GenerateString(),
		Sender:     l.self.UserID,
		SenderName: l.self.DisplayName(),
		Receiver:   target.ID,
		Timestamp:  time.Now().UnixMilli(),
		Kind:       kind,
		Status:     StatusSending,
	}
}

// All returns the full session log in arrival order.
func (l *Ledger) All() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	return out
}

// Visible returns the entries the selector admits, preserving arrival
// order. Out-of-order network delivery is not reordered.
func (l *Ledger) Visible(sel *Selector) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, 0, len(l.entries))
	for _, e := range l.entries {
		if sel.Matches(e) {
			out = append(out, *e)
		}
	}
	return out
}

// Len reports the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
