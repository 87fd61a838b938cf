package codec

import (
	"encoding/json"
	"fmt"

	"tasktango/internal/models"
)

// SenderShape selects which user object layout a call site expects.
// The backend uses different layouts per endpoint and does not tag them.
type SenderShape int

const (
	// SenderFull is the complete user object. It carries stringId.
	SenderFull SenderShape = iota
	// SenderLight is the reduced sender embedded in direct message history.
	// It has no stringId, so users decoded from it have no stable identity.
	SenderLight
)

func (s SenderShape) String() string {
	switch s {
	case SenderFull:
		return "full"
	case SenderLight:
		return "light"
	default:
		return fmt.Sprintf("SenderShape(%d)", int(s))
	}
}

// DecodeUser decodes a single user object of the given shape.
// isCurrentUser is never taken from the wire.
func DecodeUser(data []byte, shape SenderShape) (models.User, error) {
	r, err := parseRecord(data)
	if err != nil {
		return models.User{}, err
	}
	return decodeUser(r, shape)
}

func decodeUser(r record, shape SenderShape) (models.User, error) {
	var (
		u   models.User
		err error
	)
	if u.ID, err = r.requireInt64("id"); err != nil {
		return u, err
	}
	if shape == SenderFull {
		if u.StringID, err = r.requireString("stringId"); err != nil {
			return u, err
		}
	}
	if u.Username, err = r.requireString("username"); err != nil {
		return u, err
	}
	if u.Email, err = r.requireString("email"); err != nil {
		return u, err
	}

	switch shape {
	case SenderLight:
		if u.Name, err = r.requireString("name"); err != nil {
			return u, err
		}
	default:
		name, err := r.optString("name")
		if err != nil {
			return u, err
		}
		if name != nil {
			u.Name = *name
		}
		if u.AvatarURL, err = r.optString("avatarURL"); err != nil {
			return u, err
		}
		if u.Bio, err = r.optString("bio"); err != nil {
			return u, err
		}
		if u.Contact, err = r.optString("contact"); err != nil {
			return u, err
		}
		if u.IsPremium, err = r.optBool("isPremium"); err != nil {
			return u, err
		}
	}

	if u.IsOnline, err = r.optBool("isOnline"); err != nil {
		return u, err
	}
	// Still type checked, the value is discarded.
	if _, err = r.optBool("isCurrentUser"); err != nil {
		return u, err
	}
	return u, nil
}

// DecodeMessage decodes a single chat message whose sender has the given shape.
func DecodeMessage(data []byte, shape SenderShape) (models.ChatMessage, error) {
	r, err := parseRecord(data)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return decodeMessage(r, shape)
}

func decodeMessage(r record, shape SenderShape) (models.ChatMessage, error) {
	var (
		m   models.ChatMessage
		err error
	)
	if m.ID, err = r.requireInt64("id"); err != nil {
		return m, err
	}

	senderRaw, err := r.object("sender")
	if err != nil {
		return m, withID(m.ID, err)
	}
	sender, err := parseRecord(senderRaw)
	if err != nil {
		return m, withID(m.ID, nest("sender", err))
	}
	if m.Sender, err = decodeUser(sender, shape); err != nil {
		return m, withID(m.ID, nest("sender", err))
	}

	if m.Content, err = r.requireString("content"); err != nil {
		return m, withID(m.ID, err)
	}
	if m.Timestamp, err = r.timestamp("timestamp"); err != nil {
		return m, withID(m.ID, err)
	}
	channelID, err := r.optString("channelId")
	if err != nil {
		return m, withID(m.ID, err)
	}
	if channelID != nil {
		m.ChannelID = *channelID
	}
	return m, nil
}

// DecodeIncoming decodes a frame pushed by the server.
// Frames of unknown type yield a *ProtocolError and their body is not inspected.
func DecodeIncoming(data []byte) (models.Incoming, error) {
	r, err := parseRecord(data)
	if err != nil {
		return models.Incoming{}, err
	}
	tag, err := r.requireString("type")
	if err != nil {
		return models.Incoming{}, err
	}
	in := models.Incoming{Type: models.IncomingType(tag)}
	if !in.Type.Known() {
		return in, &ProtocolError{Type: tag}
	}

	raw, err := r.object("message")
	if err != nil {
		return in, err
	}
	msg, err := parseRecord(raw)
	if err != nil {
		return in, nest("message", err)
	}
	if in.Message, err = decodeMessage(msg, SenderFull); err != nil {
		return in, nest("message", err)
	}
	return in, nil
}

type messageWire struct {
	ID        int64       `json:"id"`
	Sender    models.User `json:"sender"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	ChannelID *string     `json:"channelId"`
}

func toMessageWire(m models.ChatMessage) messageWire {
	w := messageWire{
		ID:        m.ID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: formatTimestamp(m.Timestamp),
	}
	if m.ChannelID != "" {
		channelID := m.ChannelID
		w.ChannelID = &channelID
	}
	return w
}

// EncodeUser writes the full user shape.
func EncodeUser(u models.User) ([]byte, error) {
	return json.Marshal(u)
}

// EncodeMessage writes a chat message with a full sender; a direct message has "channelId":null.
func EncodeMessage(m models.ChatMessage) ([]byte, error) {
	return json.Marshal(toMessageWire(m))
}

func EncodeIncoming(in models.Incoming) ([]byte, error) {
	if !in.Type.Known() {
		return nil, &EncodeError{Variant: string(in.Type), Reason: "unknown incoming type"}
	}
	return json.Marshal(struct {
		Type    models.IncomingType `json:"type"`
		Message messageWire         `json:"message"`
	}{
		Type:    in.Type,
		Message: toMessageWire(in.Message),
	})
}
