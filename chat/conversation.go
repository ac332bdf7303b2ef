package chat

import "sync"

// TargetKind tags the active conversation target.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetDirect
	TargetGroup
)

// Target is the single active addressee for send and filter purposes.
type Target struct {
	Kind TargetKind
	ID   string
}

// Selector is the single source of truth for "what is currently open".
// Selecting a new target only changes the view filter, never the ledger.
type Selector struct {
	mu     sync.RWMutex
	selfID string
	target Target
}

func NewSelector(selfID string) *Selector {
	return &Selector{selfID: selfID}
}

func (s *Selector) SelectDirect(userID string) {
	s.mu.Lock()
	s.target = Target{Kind: TargetDirect, ID: userID}
	s.mu.Unlock()
}

func (s *Selector) SelectGroup(groupID string) {
	s.mu.Lock()
	s.target = Target{Kind: TargetGroup, ID: groupID}
	s.mu.Unlock()
}

func (s *Selector) Clear() {
	s.mu.Lock()
	s.target = Target{}
	s.mu.Unlock()
}

func (s *Selector) Current() Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// Matches decides visibility under the current target. Direct messages are
// only visible to their two participants; group messages to anyone viewing
// that group. Enforced here, not by trusting gateway-side scoping.
func (s *Selector) Matches(m *Message) bool {
	s.mu.RLock()
	t := s.target
	self := s.selfID
	s.mu.RUnlock()

	switch t.Kind {
	case TargetDirect:
		return (m.Sender == self && m.Receiver == t.ID) ||
			(m.Sender == t.ID && m.Receiver == self)
	case TargetGroup:
		return m.Receiver == t.ID
	default:
		return false
	}
}
