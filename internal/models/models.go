package models

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// AvatarOrigin is prepended to avatar paths that are not absolute URLs.
const AvatarOrigin = "https://tasktango.dev"

// User is a chat participant.
// Two users are the same participant iff their StringID matches.
type User struct {
	ID        int64   `json:"id"`
	StringID  string  `json:"stringId"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarURL,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Contact   *string `json:"contact,omitempty"`
	// IsCurrentUser is computed by the client against the logged in session.
	IsCurrentUser bool `json:"isCurrentUser"`
	IsOnline      bool `json:"isOnline"`
	IsPremium     bool `json:"isPremium"`
}

func (u User) Equal(other User) bool {
	return u.StringID == other.StringID
}

// HasStableID reports whether the user was decoded from a shape that carries stringId.
func (u User) HasStableID() bool {
	return u.StringID != ""
}

// AvatarURLString returns the absolute avatar URL.
// ok is false when the user has no avatar or the stored value can not be turned into a URL.
func (u User) AvatarURLString() (string, bool) {
	avatar, ok := u.Avatar()
	if !ok {
		return "", false
	}
	return avatar.String(), true
}

func (u User) Avatar() (*url.URL, bool) {
	if u.AvatarURL == nil {
		return nil, false
	}
	return ResolveAvatarURL(*u.AvatarURL)
}

// ResolveAvatarURL keeps http(s) URLs as they are and prefixes everything else with AvatarOrigin.
func ResolveAvatarURL(raw string) (*url.URL, bool) {
	full := raw
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		full = AvatarOrigin + raw
	}
	u, err := url.Parse(full)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// Profile is the editable part of the current user's account.
type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatarURL,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Contact   *string `json:"contact,omitempty"`
}

// Profile returns the editable part of the user's account.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.StringID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Contact:   u.Contact,
	}
}

// ChatChannel is a named conversation.
type ChatChannel struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	IsPrivate bool     `json:"isPrivate"`
	Members   []string `json:"members,omitempty"` // nil when the server did not send a member list
}

// ChatMessage is a single message. ID is always assigned by the server.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ChannelID string    `json:"channelId,omitempty"` // empty for direct messages
}

func (m ChatMessage) SenderIDString() string {
	return m.Sender.StringID
}

func (m ChatMessage) IsDirect() bool {
	return m.ChannelID == ""
}

// Before reports whether m renders before other: by timestamp, then by id.
func (m ChatMessage) Before(other ChatMessage) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.ID < other.ID
}
