package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the wire format of every timestamp: RFC 3339, fractional seconds optional.
const TimestampLayout = time.RFC3339Nano

var null = []byte("null")

// record is a JSON object whose fields are read one by one so that every
// failure can name the field it came from.
type record map[string]json.RawMessage

func parseRecord(data []byte) (record, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fieldError("", fmt.Errorf("%w: expected object: %v", ErrWrongType, err))
	}
	if r == nil {
		return nil, fieldError("", fmt.Errorf("%w: expected object, got null", ErrWrongType))
	}
	return r, nil
}

// has reports whether key is present with a non null value.
func (r record) has(key string) bool {
	raw, ok := r[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), null)
}

func (r record) required(key string, v any) error {
	if !r.has(key) {
		return fieldError(key, ErrMissingField)
	}
	return r.decode(key, v)
}

func (r record) decode(key string, v any) error {
	if err := json.Unmarshal(r[key], v); err != nil {
		return fieldError(key, fmt.Errorf("%w: %v", ErrWrongType, err))
	}
	return nil
}

func (r record) requireInt64(key string) (int64, error) {
	var v int64
	err := r.required(key, &v)
	return v, err
}

func (r record) requireString(key string) (string, error) {
	var v string
	err := r.required(key, &v)
	return v, err
}

func (r record) object(key string) (json.RawMessage, error) {
	if !r.has(key) {
		return nil, fieldError(key, ErrMissingField)
	}
	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fieldError(key, fmt.Errorf("%w: expected object", ErrWrongType))
	}
	return raw, nil
}

func (r record) array(key string) ([]json.RawMessage, error) {
	if !r.has(key) {
		return nil, fieldError(key, ErrMissingField)
	}
	var items []json.RawMessage
	if err := r.decode(key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r record) optString(key string) (*string, error) {
	if !r.has(key) {
		return nil, nil
	}
	var v string
	if err := r.decode(key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r record) optBool(key string) (bool, error) {
	if !r.has(key) {
		return false, nil
	}
	var v bool
	err := r.decode(key, &v)
	return v, err
}

func (r record) timestamp(key string) (time.Time, error) {
	s, err := r.requireString(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fieldError(key, fmt.Errorf("%w: %q", ErrBadTimestamp, s))
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
