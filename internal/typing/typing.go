package typing

import (
	"context"
	"time"

	"parley/internal/models"

	"github.com/c-pro/geche"
)

type intentSink interface {
	Send(ev models.ClientEvent)
}

// Signal handles both directions of the typing indicator. Local
// keystrokes emit a typing intent per call; rate limiting is a
// transport concern, not a correctness one. Remote state is tracked
// per (conversation, user) pair and additionally expires after a TTL,
// so a peer that vanished mid-keystroke cannot leave a stuck
// indicator.
type Signal struct {
	sink   intentSink
	remote geche.Geche[string, bool]
}

func NewSignal(ctx context.Context, sink intentSink, ttl time.Duration) *Signal {
	return &Signal{
		sink:   sink,
		remote: geche.NewMapTTLCache[string, bool](ctx, ttl, time.Second),
	}
}

// Local is called on every keystroke in the composer.
func (s *Signal) Local(conversationID string) {
	s.sink.Send(models.ClientEvent{
		Type:           models.ClientEventTypeTyping,
		ConversationID: conversationID,
		IsTyping:       true,
	})
}

// ClearLocal tells the peer we stopped typing. Issued when a send
// completes.
func (s *Signal) ClearLocal(conversationID string) {
	s.sink.Send(models.ClientEvent{
		Type:           models.ClientEventTypeTyping,
		ConversationID: conversationID,
		IsTyping:       false,
	})
}

// Remote records a peer's typing state transition.
func (s *Signal) Remote(conversationID, userID string, isTyping bool) {
	key := pairKey(conversationID, userID)
	if isTyping {
		s.remote.Set(key, true)
		return
	}
	_ = s.remote.Del(key)
}

// IsTyping reports whether userID is currently typing in the
// conversation.
func (s *Signal) IsTyping(conversationID, userID string) bool {
	v, err := s.remote.Get(pairKey(conversationID, userID))
	return err == nil && v
}

// PeerTyping reports whether the indicator should show for a direct
// conversation: true only when the other participant of conv is
// typing. Group indicators are a per-member query via IsTyping.
func (s *Signal) PeerTyping(conv *models.Conversation, selfID string) bool {
	if conv == nil {
		return false
	}
	other, ok := conv.Other(selfID)
	if !ok {
		return false
	}
	return s.IsTyping(conv.ID, other.ID)
}

// Reset drops all remote typing state. Used at logout, where waiting
// out the TTL would leak one session's indicators into the next.
func (s *Signal) Reset() {
	for key := range s.remote.Snapshot() {
		_ = s.remote.Del(key)
	}
}

func pairKey(conversationID, userID string) string {
	return conversationID + "\x00" + userID
}
