// Package reconcile maintains the ordered message list of the active
// conversation, merging optimistically-sent local messages with
// server-confirmed echoes and unrelated broadcasts without ever
// showing a duplicate.
package reconcile

import (
	"sync"
	"time"

	"parley/internal/models"

	"github.com/google/uuid"
)

// List is the message list of the active conversation. It holds
// messages for exactly one conversation at a time; LoadHistory swaps
// the whole list when the active conversation changes.
type List struct {
	mu             sync.RWMutex
	conversationID string
	messages       []models.Message
}

func NewList() *List {
	return &List{}
}

// ConversationID returns the conversation this list currently shows.
func (l *List) ConversationID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conversationID
}

// Messages returns a snapshot of the list in display order.
func (l *List) Messages() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// LoadHistory replaces the list wholesale with the fetched history of
// conversationID. Used when opening a conversation.
func (l *List) LoadHistory(conversationID string, messages []models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conversationID = conversationID
	l.messages = make([]models.Message, len(messages))
	copy(l.messages, messages)
}

// Clear discards the list when the conversation is closed.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conversationID = ""
	l.messages = nil
}

// SendOptimistic appends a Pending entry for a locally-originated send
// and returns it for display. The entry carries a fresh correlation id
// to be sent with the outbound intent. If an identical Pending entry
// (same sender and content) is still unresolved, no second entry is
// added: the existing one is returned with ok=false and the caller
// must not issue another send intent.
func (l *List) SendOptimistic(content, sender, conversationID string, now time.Time) (msg models.Message, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.messages {
		m := &l.messages[i]
		if m.State == models.MessagePending && m.Sender == sender && m.Content == content {
			return *m, false
		}
	}

	msg = models.Message{
		LocalID:        uuid.NewString(),
		Sender:         sender,
		ConversationID: conversationID,
		Content:        content,
		Timestamp:      now,
		State:          models.MessagePending,
	}
	l.messages = append(l.messages, msg)
	return msg, true
}

// ApplyInbound merges a broadcast `message` event: a message some
// other client sent. It appends unless an entry with the same
// confirmed id is already present, or the message matches an
// unresolved Pending entry: a server that broadcasts the local user's
// own send to the room before the echo would otherwise duplicate it.
// Returns true if the list changed.
func (l *List) ApplyInbound(msg models.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.ConversationID != l.conversationID {
		return false
	}
	if msg.ID != "" && l.hasConfirmed(msg.ID) {
		return false
	}
	for i := range l.messages {
		m := &l.messages[i]
		if m.State == models.MessagePending && m.Sender == msg.Sender && m.Content == msg.Content {
			// Our own in-flight send; the echo confirms it in place.
			return false
		}
	}

	msg.State = models.MessageConfirmed
	l.messages = append(l.messages, msg)
	return true
}

// ApplyEcho merges a `messageSent` echo of the local user's own send.
// The matching Pending entry is replaced in place, preserving its list
// position: by correlation id when the echo carries one, otherwise the
// earliest Pending entry with the same (sender, content). If the
// echoed id is already confirmed in the list, the Pending entry is
// removed rather than resolved. With no match (history reloaded
// mid-flight) the echo is appended unless its id is already present.
// Returns true if the list changed.
func (l *List) ApplyEcho(msg models.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.ConversationID != l.conversationID {
		return false
	}

	msg.State = models.MessageConfirmed

	if i := l.findPending(msg); i >= 0 {
		if msg.ID != "" && l.hasConfirmed(msg.ID) {
			// The confirmed entry is already in the list; resolving the
			// pending one in place would show the id twice.
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			return true
		}
		l.messages[i] = msg
		return true
	}

	if msg.ID != "" && l.hasConfirmed(msg.ID) {
		return false
	}
	l.messages = append(l.messages, msg)
	return true
}

func (l *List) findPending(echo models.Message) int {
	if echo.LocalID != "" {
		for i := range l.messages {
			m := &l.messages[i]
			if m.State == models.MessagePending && m.LocalID == echo.LocalID {
				return i
			}
		}
	}
	// FIFO tie-break: the earliest pending entry with matching sender
	// and content wins.
	for i := range l.messages {
		m := &l.messages[i]
		if m.State == models.MessagePending && m.Sender == echo.Sender && m.Content == echo.Content {
			return i
		}
	}
	return -1
}

func (l *List) hasConfirmed(id string) bool {
	for i := range l.messages {
		if l.messages[i].State == models.MessageConfirmed && l.messages[i].ID == id {
			return true
		}
	}
	return false
}
