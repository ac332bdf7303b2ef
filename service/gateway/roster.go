package gateway

import (
	"context"
	"sort"
	"sync"

	"campuschat/chat"
)

// RosterStore tracks which identities are online. The gateway broadcasts a
// full snapshot on every transition, so the store only needs wholesale
// reads. The in-memory implementation serves a single node; the redis one
// lets several gateways share presence.
type RosterStore interface {
	Online(ctx context.Context, identity chat.Identity) error
	Offline(ctx context.Context, userID string) error
	Snapshot(ctx context.Context) ([]chat.Identity, error)
}

type memoryRoster struct {
	mu    sync.RWMutex
	users map[string]chat.Identity
}

// NewMemoryRoster returns the single-node store.
func NewMemoryRoster() RosterStore {
	return &memoryRoster{users: make(map[string]chat.Identity)}
}

func (m *memoryRoster) Online(_ context.Context, identity chat.Identity) error {
	m.mu.Lock()
	m.users[identity.UserID] = identity
	m.mu.Unlock()
	return nil
}

func (m *memoryRoster) Offline(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.users, userID)
	m.mu.Unlock()
	return nil
}

func (m *memoryRoster) Snapshot(_ context.Context) ([]chat.Identity, error) {
	m.mu.RLock()
	out := make([]chat.Identity, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
