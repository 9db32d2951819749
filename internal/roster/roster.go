package roster

import (
	"sort"
	"strings"
	"sync"

	"parley/internal/models"

	"github.com/c-pro/geche"
)

// Roster maintains the conversation list with preview metadata. One
// live copy exists per conversation id; entries are mutated in place
// as message and metadata events arrive. A side index of user display
// names, filled from message metadata, backs participant patching.
type Roster struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	names         geche.Geche[string, string]
}

func New() *Roster {
	return &Roster{
		conversations: make(map[string]*models.Conversation),
		names:         geche.NewMapCache[string, string](),
	}
}

// List returns the conversations ordered by most recent activity.
func (r *Roster) List() []models.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Get returns a copy of the conversation with the given id.
func (r *Roster) Get(id string) (models.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return models.Conversation{}, false
	}
	return *c, true
}

// ReplaceAll swaps the roster for a freshly fetched conversation list.
// Known display names are re-applied to any gaps in the new entries.
func (r *Roster) ReplaceAll(conversations []models.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations = make(map[string]*models.Conversation, len(conversations))
	for i := range conversations {
		c := conversations[i]
		r.fillNames(&c)
		r.conversations[c.ID] = &c
	}
}

// Upsert merges a server-returned or freshly created conversation into
// the roster, replacing any provisional placeholder for the same id.
func (r *Roster) Upsert(conversation models.Conversation) {
	if conversation.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := conversation
	r.fillNames(&c)

	existing, ok := r.conversations[conversation.ID]
	if ok && !existing.Provisional {
		if c.LastMessage == nil {
			c.LastMessage = existing.LastMessage
		}
		if c.UpdatedAt.Before(existing.UpdatedAt) {
			c.UpdatedAt = existing.UpdatedAt
		}
	}
	r.conversations[conversation.ID] = &c
}

// PatchParticipant fills only missing name fields on the matching
// participant record, leaving already-populated fields untouched.
// Patching is idempotent.
func (r *Roster) PatchParticipant(conversationID, userID, displayName string) {
	if displayName == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.names.Set(userID, displayName)

	c, ok := r.conversations[conversationID]
	if !ok {
		return
	}
	p, ok := c.Participant(userID)
	if !ok {
		return
	}
	patchName(p, displayName)
}

// ApplyMessage updates the preview metadata of the message's
// conversation and patches the sender's display name if the entry was
// missing it. Returns false if the conversation is unknown.
func (r *Roster) ApplyMessage(msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[msg.ConversationID]
	if !ok {
		return false
	}

	m := msg
	c.LastMessage = &m
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}

	if msg.SenderName != "" {
		r.names.Set(msg.Sender, msg.SenderName)
		if p, ok := c.Participant(msg.Sender); ok {
			patchName(p, msg.SenderName)
		}
	}
	return true
}

// Reset drops all roster state. Used on logout teardown.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations = make(map[string]*models.Conversation)
	r.names = geche.NewMapCache[string, string]()
}

// fillNames patches name gaps in c's participants from the name index.
// Caller holds the lock.
func (r *Roster) fillNames(c *models.Conversation) {
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.FirstName != "" || p.LastName != "" {
			continue
		}
		if name, err := r.names.Get(p.ID); err == nil {
			patchName(p, name)
		}
	}
}

// patchName splits a full display name and fills only the empty
// fields of p.
func patchName(p *models.Participant, displayName string) {
	first, last, _ := strings.Cut(strings.TrimSpace(displayName), " ")
	if p.FirstName == "" {
		p.FirstName = first
	}
	if p.LastName == "" {
		p.LastName = last
	}
}
