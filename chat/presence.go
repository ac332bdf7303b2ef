package chat

import (
	"sort"
	"strings"
	"sync"
)

// PresenceDirectory answers "who is online". It is a snapshot, not a diff
// log: every roster broadcast replaces the whole directory. The local
// identity never appears in it.
type PresenceDirectory struct {
	mu     sync.RWMutex
	selfID string
	users  map[string]Identity
}

func NewPresenceDirectory(selfID string) *PresenceDirectory {
	return &PresenceDirectory{
		selfID: selfID,
		users:  make(map[string]Identity),
	}
}

// Replace installs a fresh roster. The local identity is filtered out even
// if the gateway included it.
func (d *PresenceDirectory) Replace(roster []Identity) {
	next := make(map[string]Identity, len(roster))
	for _, u := range roster {
		if u.UserID == "" || u.UserID == d.selfID {
			continue
		}
		next[u.UserID] = u
	}
	d.mu.Lock()
	d.users = next
	d.mu.Unlock()
}

// Get looks a participant up by id.
func (d *PresenceDirectory) Get(userID string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	return u, ok
}

// List returns the roster sorted by display name, case-insensitively so
// "ann" and "Bob" interleave the way a user list renders them.
func (d *PresenceDirectory) List() []Identity {
	d.mu.RLock()
	out := make([]Identity, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a := strings.ToLower(out[i].DisplayName())
		b := strings.ToLower(out[j].DisplayName())
		if a == b {
			return out[i].UserID < out[j].UserID
		}
		return a < b
	})
	return out
}

// Clear drops the snapshot. Called on disconnect; the next broadcast after
// a reconnect rebuilds it.
func (d *PresenceDirectory) Clear() {
	d.mu.Lock()
	d.users = make(map[string]Identity)
	d.mu.Unlock()
}
