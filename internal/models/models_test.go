package models

import (
	"testing"
	"time"
)

func TestResolveAvatarURL(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"/images/a.png", "https://tasktango.dev/images/a.png"},
		{"https://cdn.example.com/a.png", "https://cdn.example.com/a.png"},
		{"http://cdn.example.com/a.png", "http://cdn.example.com/a.png"},
	}
	for _, tc := range cases {
		u, ok := ResolveAvatarURL(tc.in)
		if !ok {
			t.Errorf("%s: expected a URL", tc.in)
			continue
		}
		if u.String() != tc.expected {
			t.Errorf("%s: expected %s, got %s", tc.in, tc.expected, u.String())
		}
	}
}

func TestUser_AvatarMissingOrBroken(t *testing.T) {
	var u User
	if _, ok := u.AvatarURLString(); ok {
		t.Error("user without avatar must have no avatar URL")
	}

	broken := "http://[::1"
	u.AvatarURL = &broken
	if _, ok := u.AvatarURLString(); ok {
		t.Error("unparseable avatar must be treated as no avatar")
	}
}

func TestUser_Equal(t *testing.T) {
	a := User{ID: 1, StringID: "u-1", Username: "a"}
	b := User{ID: 2, StringID: "u-1", Username: "renamed"}
	c := User{ID: 1, StringID: "u-2", Username: "a"}

	if !a.Equal(b) {
		t.Error("users with the same stringId must be equal")
	}
	if a.Equal(c) {
		t.Error("users with different stringId must not be equal")
	}
}

func TestChatMessage_Before(t *testing.T) {
	t0 := time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)
	early := ChatMessage{ID: 9, Timestamp: t0}
	late := ChatMessage{ID: 1, Timestamp: t0.Add(time.Second)}
	tie := ChatMessage{ID: 10, Timestamp: t0}

	if !early.Before(late) {
		t.Error("earlier timestamp must render first")
	}
	if !early.Before(tie) || tie.Before(early) {
		t.Error("equal timestamps must be ordered by id")
	}
}

func TestIncomingType_Known(t *testing.T) {
	for _, typ := range []IncomingType{IncomingTypeNewMessage, IncomingTypePrivateMessage, IncomingTypeMessage} {
		if !typ.Known() {
			t.Errorf("%s should be known", typ)
		}
	}
	if IncomingType("typing").Known() {
		t.Error("typing should not be known")
	}
}
