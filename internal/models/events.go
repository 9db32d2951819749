package models

// ClientEventType enumerates outbound intents.
type ClientEventType string

const (
	ClientEventTypeJoin   ClientEventType = "joinChat"
	ClientEventTypeSend   ClientEventType = "sendMessage"
	ClientEventTypeTyping ClientEventType = "typing"
)

// ClientEvent is an outbound intent sent over the connection.
type ClientEvent struct {
	Type           ClientEventType `json:"type"`
	ConversationID string          `json:"chatId,omitempty"`
	Content        string          `json:"content,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	LocalID        string          `json:"localId,omitempty"`
	IsTyping       bool            `json:"isTyping,omitempty"`
}

// ServerEventType enumerates inbound events.
type ServerEventType string

const (
	ServerEventTypeMessage     ServerEventType = "message"
	ServerEventTypeMessageSent ServerEventType = "messageSent"
	ServerEventTypeTyping      ServerEventType = "typing"
	ServerEventTypeOnline      ServerEventType = "userOnline"
	ServerEventTypeOffline     ServerEventType = "userOffline"
	ServerEventTypeError       ServerEventType = "error"
)

// ServerEvent is one inbound event from the connection. Exactly the
// fields relevant to its Type are populated; the rest are zero.
type ServerEvent struct {
	Type           ServerEventType `json:"type"`
	Message        *Message        `json:"message,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	ConversationID string          `json:"chatId,omitempty"`
	IsTyping       bool            `json:"isTyping,omitempty"`
	Error          string          `json:"error,omitempty"`
}
