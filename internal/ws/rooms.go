package ws

import "sync"

// Membership records which conversation rooms have been joined on the
// current session. Recording is append-only and idempotent: reconnects
// replay the full list, in join order, so conversation context survives
// a dropped connection.
type Membership struct {
	mu   sync.Mutex
	ids  []string
	seen map[string]struct{}
}

func NewMembership() *Membership {
	return &Membership{seen: make(map[string]struct{})}
}

// Record remembers id for replay. Returns false if it was already
// recorded.
func (m *Membership) Record(id string) bool {
	if id == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[id]; ok {
		return false
	}
	m.seen[id] = struct{}{}
	m.ids = append(m.ids, id)
	return true
}

// All returns every recorded id in join order.
func (m *Membership) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.ids))
	copy(ids, m.ids)
	return ids
}

// Reset forgets all recorded rooms. Called on logout only; a reconnect
// never resets membership.
func (m *Membership) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids = nil
	m.seen = make(map[string]struct{})
}
