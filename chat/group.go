package chat

import (
	"sort"
	"strings"
	"sync"

	"campuschat/logger"
	"campuschat/tools/errs"
	"campuschat/tools/ids"
)

// Group is a confirmed group chat. Membership is set once at creation.
type Group struct {
	GroupID string
	Name    string
	Members []string
}

// GroupRegistry tracks group identities and the creation/join flow. A group
// becomes visible only after the gateway confirms it; local creation only
// mints an id and emits the request.
type GroupRegistry struct {
	mu      sync.RWMutex
	selfID  string
	emitter Emitter
	groups  map[string]Group
	order   []string
	pending map[string]struct{} // creations emitted, not yet confirmed
}

func NewGroupRegistry(selfID string, emitter Emitter) *GroupRegistry {
	return &GroupRegistry{
		selfID:  selfID,
		emitter: emitter,
		groups:  make(map[string]Group),
		pending: make(map[string]struct{}),
	}
}

// Create validates locally, mints a client-side group id and emits the
// creation request. Confirmation arrives asynchronously via groupCreated.
// Validation failures produce zero network traffic.
func (r *GroupRegistry) Create(name string, memberIDs []string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.ErrValidation.WrapMsg("group name is required")
	}

	members := r.normalizeMembers(memberIDs)
	if len(members) == 0 {
		return "", errs.ErrValidation.WrapMsg("group members are required")
	}
	// Creation does not imply subscription, but the creator is always a
	// member.
	members = append(members, r.selfID)

	groupID := ids.GroupID()
	payload := CreateGroupPayload{GroupID: groupID, GroupName: name, Members: members}

	r.mu.Lock()
	r.pending[groupID] = struct{}{}
	r.mu.Unlock()

	if err := r.emitter.Emit(EventCreateGroup, payload); err != nil {
		r.mu.Lock()
		delete(r.pending, groupID)
		r.mu.Unlock()
		return "", err
	}
	return groupID, nil
}

// normalizeMembers drops blank entries, the local identity and duplicates.
func (r *GroupRegistry) normalizeMembers(memberIDs []string) []string {
	seen := make(map[string]struct{}, len(memberIDs))
	out := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == r.selfID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// HandleCreated inserts a confirmed group. The creator self-joins, since
// creation alone does not subscribe the connection to the group's traffic.
func (r *GroupRegistry) HandleCreated(p GroupCreatedPayload) {
	if p.GroupID == "" {
		return
	}
	r.mu.Lock()
	_, mine := r.pending[p.GroupID]
	delete(r.pending, p.GroupID)
	if _, exists := r.groups[p.GroupID]; !exists {
		r.groups[p.GroupID] = Group{GroupID: p.GroupID, Name: p.Name, Members: p.Members}
		r.order = append(r.order, p.GroupID)
	}
	r.mu.Unlock()

	if err := r.emitter.Emit(EventJoinGroup, JoinGroupPayload{GroupID: p.GroupID}); err != nil {
		logger.Warnf("[groups] join after create failed group=%s err=%v", p.GroupID, err)
	}
	if mine {
		logger.Infof("[groups] creation confirmed group=%s name=%s", p.GroupID, p.Name)
	}
}

// HandleRejected clears the pending mark for a failed creation. The
// registry itself was never mutated. An empty id clears every pending
// creation, for gateways that don't echo the group id back.
func (r *GroupRegistry) HandleRejected(groupID string) {
	r.mu.Lock()
	if groupID == "" {
		r.pending = make(map[string]struct{})
	} else {
		delete(r.pending, groupID)
	}
	r.mu.Unlock()
}

// HasPending reports whether any creation is awaiting a verdict. Used to
// attribute anonymous gateway error frames to the creation flow.
func (r *GroupRegistry) HasPending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending) > 0
}

// Get looks a group up by id.
func (r *GroupRegistry) Get(groupID string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	return g, ok
}

// List returns confirmed groups in confirmation order.
func (r *GroupRegistry) List() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.groups[id])
	}
	return out
}

// MemberNames resolves member ids to display names against the directory,
// falling back to the raw id for members currently offline.
func (r *GroupRegistry) MemberNames(groupID string, dir *PresenceDirectory) []string {
	g, ok := r.Get(groupID)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.Members))
	for _, id := range g.Members {
		if u, online := dir.Get(id); online {
			out = append(out, u.DisplayName())
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
