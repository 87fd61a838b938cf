package codec

import (
	"encoding/json"

	"tasktango/internal/models"
)

// Endpoint describes how a history endpoint shapes its response body.
type Endpoint struct {
	Name   string
	Sender SenderShape
	// AllowFlat permits the {"messages":[...]} form when the nested form is absent.
	AllowFlat bool
}

var (
	// ChannelHistory is GET /api/channels/{id}/messages.
	ChannelHistory = Endpoint{Name: "channel history", Sender: SenderFull}
	// DirectHistory is GET /api/messages/private/{stringId}.
	DirectHistory = Endpoint{Name: "direct history", Sender: SenderLight, AllowFlat: true}
)

// DecodeHistory decodes a history page. The nested {"data":{"messages":[...]}} form is tried
// first; the flat form is accepted only if the endpoint is known to return it.
func DecodeHistory(data []byte, ep Endpoint) ([]models.ChatMessage, error) {
	r, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	if err := envelopeError(r); err != nil {
		return nil, err
	}
	if r.has("data") || !ep.AllowFlat {
		return decodeNested(r, ep.Sender)
	}
	return decodeFlat(r, ep.Sender)
}

func decodeNested(r record, shape SenderShape) ([]models.ChatMessage, error) {
	wrapper, err := dataWrapper(r)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeFlat(wrapper, shape)
	if err != nil {
		return nil, nest("data", err)
	}
	return msgs, nil
}

func decodeFlat(r record, shape SenderShape) ([]models.ChatMessage, error) {
	items, err := r.array("messages")
	if err != nil {
		return nil, err
	}
	msgs := make([]models.ChatMessage, 0, len(items))
	for i, item := range items {
		rec, err := parseRecord(item)
		if err != nil {
			return nil, atIndex(i, nest("messages", err))
		}
		msg, err := decodeMessage(rec, shape)
		if err != nil {
			return nil, atIndex(i, nest("messages", err))
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func dataWrapper(r record) (record, error) {
	if err := envelopeError(r); err != nil {
		return nil, err
	}
	raw, err := r.object("data")
	if err != nil {
		return nil, err
	}
	wrapper, err := parseRecord(raw)
	if err != nil {
		return nil, nest("data", err)
	}
	return wrapper, nil
}

// DecodeLegacyHistory decodes the nested envelope whose records reference the sender
// by "sender_id".
//
// Deprecated: kept for backends that still serve the old message list.
func DecodeLegacyHistory(data []byte) ([]models.LegacyMessage, error) {
	r, err := parseRecord(data)
	if err != nil {
		return nil, err
	}
	wrapper, err := dataWrapper(r)
	if err != nil {
		return nil, err
	}
	items, err := wrapper.array("messages")
	if err != nil {
		return nil, nest("data", err)
	}

	msgs := make([]models.LegacyMessage, 0, len(items))
	for i, item := range items {
		msg, err := decodeLegacyMessage(item)
		if err != nil {
			return nil, atIndex(i, nest("data.messages", err))
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func decodeLegacyMessage(data json.RawMessage) (models.LegacyMessage, error) {
	var m models.LegacyMessage
	r, err := parseRecord(data)
	if err != nil {
		return m, err
	}
	if m.ID, err = r.requireInt64("id"); err != nil {
		return m, err
	}
	if m.UserID, err = r.requireInt64("sender_id"); err != nil {
		return m, withID(m.ID, err)
	}
	if m.Text, err = r.requireString("content"); err != nil {
		return m, withID(m.ID, err)
	}
	if m.Timestamp, err = r.timestamp("timestamp"); err != nil {
		return m, withID(m.ID, err)
	}
	return m, nil
}
