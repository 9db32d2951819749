package presence

import "sync"

// Tracker maintains the set of currently-online peer ids. Membership
// is toggled only by explicit online/offline events, never inferred;
// the most recent event wins.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]struct{})}
}

func (t *Tracker) Online(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	t.online[userID] = struct{}{}
	t.mu.Unlock()
}

func (t *Tracker) Offline(userID string) {
	t.mu.Lock()
	delete(t.online, userID)
	t.mu.Unlock()
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// Snapshot returns the current online set as a copy.
func (t *Tracker) Snapshot() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]struct{}, len(t.online))
	for id := range t.online {
		out[id] = struct{}{}
	}
	return out
}

// Reset drops all presence state. Used on logout teardown.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.online = make(map[string]struct{})
	t.mu.Unlock()
}
