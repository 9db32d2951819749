package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBSession is the persisted credential and identity for the single
// local account. Exactly one record exists.
type DBSession struct {
	Token     string `msgpack:"token"`
	UserID    string `msgpack:"userId"`
	FirstName string `msgpack:"firstName"`
	LastName  string `msgpack:"lastName"`
	Email     string `msgpack:"email"`
	AvatarURL string `msgpack:"avatarUrl"`
	ExpiresAt int64  `msgpack:"expiresAt"`
}

func (s *DBSession) Key() []byte {
	return []byte("current")
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}

// DBConversation is one cached roster entry, enough to render the chat
// list before the first fetch completes.
type DBConversation struct {
	ID           string          `msgpack:"id"`
	Participants []DBParticipant `msgpack:"participants"`
	IsGroup      bool            `msgpack:"isGroup"`
	GroupName    string          `msgpack:"groupName"`
	GroupAvatar  string          `msgpack:"groupAvatar"`
	LastMessage  *DBMessage      `msgpack:"lastMessage"`
	UpdatedAt    int64           `msgpack:"updatedAt"`
}

type DBParticipant struct {
	ID        string `msgpack:"id"`
	FirstName string `msgpack:"firstName"`
	LastName  string `msgpack:"lastName"`
	AvatarURL string `msgpack:"avatarUrl"`
}

type DBMessage struct {
	ID        string `msgpack:"id"`
	Sender    string `msgpack:"sender"`
	Content   string `msgpack:"content"`
	Timestamp int64  `msgpack:"timestamp"`
}

func (c *DBConversation) Key() []byte {
	return []byte(c.ID)
}

func (c *DBConversation) MarshalBinary() (data []byte, err error) {
	type alias DBConversation
	return msgpack.Marshal((*alias)(c))
}

func (c *DBConversation) UnmarshalBinary(data []byte) error {
	type alias DBConversation
	return msgpack.Unmarshal(data, (*alias)(c))
}
