package codec

import (
	"encoding/json"
	"fmt"

	"tasktango/internal/models"
)

// Field order matters only for deterministic output.
type channelMessageWire struct {
	Type      models.OutgoingType `json:"type"`
	Content   string              `json:"content"`
	SenderID  string              `json:"senderId"`
	ChannelID string              `json:"channelId"`
}

type privateMessageWire struct {
	Type        models.OutgoingType `json:"type"`
	Content     string              `json:"content"`
	SenderID    string              `json:"senderId"`
	RecipientID string              `json:"recipientId"`
}

// EncodeOutgoing serializes an outgoing message into a text frame.
func EncodeOutgoing(msg models.Outgoing) ([]byte, error) {
	switch m := msg.(type) {
	case *models.ChannelMessage:
		if m == nil {
			return nil, &EncodeError{Variant: string(models.OutgoingTypeChannel), Reason: "nil message"}
		}
		return encodeChannelMessage(*m)
	case models.ChannelMessage:
		return encodeChannelMessage(m)
	case *models.PrivateMessage:
		if m == nil {
			return nil, &EncodeError{Variant: string(models.OutgoingTypePrivate), Reason: "nil message"}
		}
		return encodePrivateMessage(*m)
	case models.PrivateMessage:
		return encodePrivateMessage(m)
	case nil:
		return nil, &EncodeError{Variant: "<nil>", Reason: "nil message"}
	default:
		return nil, &EncodeError{Variant: fmt.Sprintf("%T", msg), Reason: "unsupported variant"}
	}
}

func encodeChannelMessage(m models.ChannelMessage) ([]byte, error) {
	if m.ChannelID == "" {
		return nil, &EncodeError{Variant: string(models.OutgoingTypeChannel), Reason: "channelId is required"}
	}
	return json.Marshal(channelMessageWire{
		Type:      models.OutgoingTypeChannel,
		Content:   m.Content,
		SenderID:  m.SenderID,
		ChannelID: m.ChannelID,
	})
}

func encodePrivateMessage(m models.PrivateMessage) ([]byte, error) {
	if m.RecipientID == "" {
		return nil, &EncodeError{Variant: string(models.OutgoingTypePrivate), Reason: "recipientId is required"}
	}
	return json.Marshal(privateMessageWire{
		Type:        models.OutgoingTypePrivate,
		Content:     m.Content,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
	})
}

// DecodeOutgoing parses a client frame back into its variant.
// A frame carrying both channelId and recipientId is rejected.
func DecodeOutgoing(data []byte) (models.Outgoing, error) {
	r, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	tag, err := r.requireString("type")
	if err != nil {
		return nil, err
	}
	switch models.OutgoingType(tag) {
	case models.OutgoingTypeChannel, models.OutgoingTypePrivate:
	default:
		return nil, &ProtocolError{Type: tag}
	}
	if r.has("channelId") && r.has("recipientId") {
		return nil, fieldError("recipientId", ErrAmbiguousTarget)
	}

	content, err := r.requireString("content")
	if err != nil {
		return nil, err
	}
	senderID, err := r.requireString("senderId")
	if err != nil {
		return nil, err
	}

	switch models.OutgoingType(tag) {
	case models.OutgoingTypeChannel:
		channelID, err := r.requireString("channelId")
		if err != nil {
			return nil, err
		}
		return models.ChannelMessage{Content: content, SenderID: senderID, ChannelID: channelID}, nil
	default:
		recipientID, err := r.requireString("recipientId")
		if err != nil {
			return nil, err
		}
		return models.PrivateMessage{Content: content, SenderID: senderID, RecipientID: recipientID}, nil
	}
}
