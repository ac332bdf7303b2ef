package gateway

import (
	"sync"

	"campuschat/tools/errs"
)

type groupEntry struct {
	name    string
	members map[string]struct{}
}

// GroupTable is the gateway's authoritative group/membership record.
// Membership is fixed at creation; joinGroup only subscribes a member's
// connection, it never grows the member set.
type GroupTable struct {
	mu     sync.RWMutex
	groups map[string]*groupEntry
}

func NewGroupTable() *GroupTable {
	return &GroupTable{groups: make(map[string]*groupEntry)}
}

// Create registers a group under a client-minted id. Duplicate ids are
// rejected rather than overwritten.
func (t *GroupTable) Create(groupID, name string, members []string) error {
	if groupID == "" || name == "" || len(members) == 0 {
		return errs.ErrValidation.WrapMsg("groupId, name and members are required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.groups[groupID]; exists {
		return errs.ErrGroupCreation.WrapMsg("group id already exists", "groupId", groupID)
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m != "" {
			set[m] = struct{}{}
		}
	}
	t.groups[groupID] = &groupEntry{name: name, members: set}
	return nil
}

// Join validates a member's subscription request.
func (t *GroupTable) Join(groupID, userID string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[groupID]
	if !ok {
		return errs.ErrGroupCreation.WrapMsg("unknown group", "groupId", groupID)
	}
	if _, member := g.members[userID]; !member {
		return errs.ErrGroupCreation.WrapMsg("not a member", "groupId", groupID)
	}
	return nil
}

// Members returns the member ids, or nil for an unknown group.
func (t *GroupTable) Members(groupID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.members))
	for m := range g.members {
		out = append(out, m)
	}
	return out
}

// IsMember reports membership.
func (t *GroupTable) IsMember(groupID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.groups[groupID]
	if !ok {
		return false
	}
	_, member := g.members[userID]
	return member
}
