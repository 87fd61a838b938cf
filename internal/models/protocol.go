package models

import "time"

type OutgoingType string

const (
	OutgoingTypeChannel OutgoingType = "new_message"
	OutgoingTypePrivate OutgoingType = "private_message"
)

// Outgoing is a message sent from the client over the WebSocket.
// The only implementations are ChannelMessage and PrivateMessage.
type Outgoing interface {
	OutgoingType() OutgoingType
	sealed()
}

// ChannelMessage posts Content into a channel.
type ChannelMessage struct {
	Content   string
	SenderID  string
	ChannelID string
}

func (ChannelMessage) OutgoingType() OutgoingType { return OutgoingTypeChannel }
func (ChannelMessage) sealed()                    {}

// PrivateMessage sends Content directly to another user.
type PrivateMessage struct {
	Content     string
	SenderID    string
	RecipientID string
}

func (PrivateMessage) OutgoingType() OutgoingType { return OutgoingTypePrivate }
func (PrivateMessage) sealed()                    {}

type IncomingType string

const (
	IncomingTypeNewMessage     IncomingType = "new_message"
	IncomingTypePrivateMessage IncomingType = "private_message"
	IncomingTypeMessage        IncomingType = "message"
)

// Known reports whether the client understands frames of this type.
func (t IncomingType) Known() bool {
	switch t {
	case IncomingTypeNewMessage, IncomingTypePrivateMessage, IncomingTypeMessage:
		return true
	}
	return false
}

// Incoming is a message delivery pushed by the server.
type Incoming struct {
	Type    IncomingType
	Message ChatMessage
}

// APIResponse is the envelope used by the non chat endpoints.
// Data is nil when the request failed.
type APIResponse[T any] struct {
	Data    *T      `json:"data"`
	Error   *string `json:"error"`
	Message *string `json:"message"`
}

type AuthResponseData struct {
	AccessToken string `json:"accessToken"`
}

type RegisterUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LegacyMessage is the older history record that references its sender by numeric id.
//
// Deprecated: only the /messages endpoints of old backends return it; use ChatMessage.
type LegacyMessage struct {
	ID        int64
	UserID    int64
	Text      string
	Timestamp time.Time
}

type UserChangeKind string

const (
	UserChangeOnline  UserChangeKind = "online"
	UserChangePremium UserChangeKind = "premium"
	UserChangeProfile UserChangeKind = "profile"
)

// UserChange is emitted whenever a stored user record is mutated.
type UserChange struct {
	Kind UserChangeKind
	User User
}
