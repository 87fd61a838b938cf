package codec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrWrongType       = errors.New("wrong type")
	ErrBadTimestamp    = errors.New("unparseable timestamp")
	ErrAmbiguousTarget = errors.New("channelId and recipientId are mutually exclusive")
)

// DecodeError reports a wire record that could not be turned into a model value.
type DecodeError struct {
	// Index is the position of the record inside a batch, -1 for a single record.
	Index int
	// ID is the record id. Valid only when HasID is set.
	ID    int64
	HasID bool
	// Field is the dotted path of the offending field, e.g. "sender.stringId".
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("decode")
	if e.Index >= 0 {
		fmt.Fprintf(&sb, " record %d", e.Index)
	}
	if e.HasID {
		fmt.Fprintf(&sb, " (id=%d)", e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, " field %q", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error) *DecodeError {
	return &DecodeError{Index: -1, Field: field, Err: err}
}

// nest moves the error under prefix, e.g. "username" becomes "sender.username".
func nest(prefix string, err error) error {
	var de *DecodeError
	if !errors.As(err, &de) {
		return fieldError(prefix, err)
	}
	nested := *de
	switch {
	case nested.Field == "":
		nested.Field = prefix
	default:
		nested.Field = prefix + "." + nested.Field
	}
	return &nested
}

func withID(id int64, err error) error {
	var de *DecodeError
	if !errors.As(err, &de) {
		return err
	}
	out := *de
	out.ID = id
	out.HasID = true
	return &out
}

func atIndex(i int, err error) error {
	var de *DecodeError
	if !errors.As(err, &de) {
		return &DecodeError{Index: i, Err: err}
	}
	indexed := *de
	indexed.Index = i
	return &indexed
}

// EncodeError is returned for outgoing messages that can not be put on the wire.
// It is always a caller bug.
type EncodeError struct {
	Variant string
	Reason  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Variant, e.Reason)
}

// ProtocolError reports a frame with a type this client does not know.
// Such frames are to be ignored.
type ProtocolError struct {
	Type string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unknown frame type %q", e.Type)
}

// APIError carries the failure reported by the server inside the generic response envelope.
type APIError struct {
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "" && e.Detail != e.Message:
		return fmt.Sprintf("api error: %s: %s", e.Message, e.Detail)
	default:
		return "api error: " + e.Message
	}
}
