package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// User is the authenticated identity of this client.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AvatarURL string `json:"profilePicture,omitempty"`
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Participant is one member of a conversation as known locally.
// Name fields may be empty when the participant was first observed
// through a group broadcast; they are patched, never overwritten,
// once message metadata supplies them.
type Participant struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"profilePicture,omitempty"`
}

func (p Participant) DisplayName() string {
	return User{FirstName: p.FirstName, LastName: p.LastName}.DisplayName()
}

// Conversation is one roster entry, direct or group.
type Conversation struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	IsGroup      bool          `json:"isGroup"`
	GroupName    string        `json:"groupName,omitempty"`
	GroupAvatar  string        `json:"groupPicture,omitempty"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// Provisional marks a placeholder entry created for an id that was
	// opened before the roster knew it. Replaced by the next upsert.
	Provisional bool `json:"-"`
}

// Other returns the counterpart of userID in a direct conversation.
func (c *Conversation) Other(userID string) (Participant, bool) {
	if c.IsGroup {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.ID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (c *Conversation) Participant(userID string) (*Participant, bool) {
	for i := range c.Participants {
		if c.Participants[i].ID == userID {
			return &c.Participants[i], true
		}
	}
	return nil, false
}

// DisplayName is what the chat list shows for this conversation.
func (c *Conversation) DisplayName(selfID string) string {
	if c.IsGroup {
		if c.GroupName != "" {
			return c.GroupName
		}
		return "Group"
	}
	if other, ok := c.Other(selfID); ok && other.DisplayName() != "" {
		return other.DisplayName()
	}
	return "Unknown"
}

// MessageState is the formal state of a message: Pending until the
// server has assigned it an id, Confirmed after. The tag is explicit
// rather than inferred from field presence at use sites.
type MessageState int

const (
	MessagePending MessageState = iota
	MessageConfirmed
)

func (s MessageState) String() string {
	if s == MessagePending {
		return "pending"
	}
	return "confirmed"
}

// Message is one chat message. ID is server-assigned and empty while
// Pending. LocalID is a client-generated correlation id attached at
// optimistic-send time; the server may or may not echo it back.
type Message struct {
	ID             string       `json:"id,omitempty"`
	LocalID        string       `json:"localId,omitempty"`
	Sender         string       `json:"sender"`
	SenderName     string       `json:"senderName,omitempty"`
	ConversationID string       `json:"chatId"`
	Content        string       `json:"content"`
	Timestamp      time.Time    `json:"timestamp"`
	State          MessageState `json:"-"`
}

// Tagged returns m with State derived from id presence. Used only at
// the wire boundary, where inbound payloads carry no explicit tag.
func (m Message) Tagged() Message {
	if m.ID == "" {
		m.State = MessagePending
	} else {
		m.State = MessageConfirmed
	}
	return m
}
