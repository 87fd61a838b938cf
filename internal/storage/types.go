package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBSession is the persisted login. There is at most one.
type DBSession struct {
	Username  string `msgpack:"username"`
	Token     string `msgpack:"token"`
	UserID    string `msgpack:"userId"`
	ExpiresAt int64  `msgpack:"expiresAt"` // Unix timestamp (seconds)
}

var sessionKey = []byte("current")

func (s *DBSession) Key() []byte {
	return sessionKey
}

func (s *DBSession) MarshalBinary() (data []byte, err error) {
	type alias DBSession
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSession) UnmarshalBinary(data []byte) error {
	type alias DBSession
	return msgpack.Unmarshal(data, (*alias)(s))
}

type DBUser struct {
	ID        int64   `msgpack:"id"`
	StringID  string  `msgpack:"stringId"`
	Username  string  `msgpack:"username"`
	Email     string  `msgpack:"email"`
	Name      string  `msgpack:"name"`
	AvatarURL *string `msgpack:"avatarUrl"`
	Bio       *string `msgpack:"bio"`
	Contact   *string `msgpack:"contact"`
	IsOnline  bool    `msgpack:"isOnline"`
	IsPremium bool    `msgpack:"isPremium"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.StringID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBChannel struct {
	ID        int64    `msgpack:"id"`
	Name      string   `msgpack:"name"`
	IsPrivate bool     `msgpack:"isPrivate"`
	Members   []string `msgpack:"members"`
}

func (c *DBChannel) Key() []byte {
	return idKey(c.ID)
}

func (c *DBChannel) MarshalBinary() (data []byte, err error) {
	type alias DBChannel
	return msgpack.Marshal((*alias)(c))
}

func (c *DBChannel) UnmarshalBinary(data []byte) error {
	type alias DBChannel
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBMessage struct {
	ID        int64  `msgpack:"id"`
	Timestamp int64  `msgpack:"timestamp"` // Unix nanoseconds
	ChannelID string `msgpack:"channelId"`
	Content   string `msgpack:"content"`
	Sender    DBUser `msgpack:"sender"`
}

func (m *DBMessage) Key() []byte {
	return idKey(m.ID)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// idKey keeps bbolt's byte order equal to numeric order for non negative ids.
func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
