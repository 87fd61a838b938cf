package codec

import (
	"encoding/json"
	"fmt"

	"tasktango/internal/models"
)

// UnwrapAPIData returns the raw "data" member of a generic response envelope.
// A null or missing "data" next to an "error" is an *APIError, not a decode failure.
func UnwrapAPIData(body []byte) (json.RawMessage, error) {
	var env models.APIResponse[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fieldError("", fmt.Errorf("%w: %v", ErrWrongType, err))
	}
	if env.Data != nil {
		return *env.Data, nil
	}
	if apiErr := newAPIError(env.Error, env.Message); apiErr != nil {
		return nil, apiErr
	}
	return nil, fieldError("data", ErrMissingField)
}

// UnwrapAPIResponse unwraps the envelope and decodes "data" into T.
func UnwrapAPIResponse[T any](body []byte) (T, error) {
	var v T
	raw, err := UnwrapAPIData(body)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fieldError("data", fmt.Errorf("%w: %v", ErrWrongType, err))
	}
	return v, nil
}

func newAPIError(errMsg, detail *string) *APIError {
	if errMsg == nil && detail == nil {
		return nil
	}
	apiErr := &APIError{}
	if errMsg != nil {
		apiErr.Message = *errMsg
	}
	if detail != nil {
		apiErr.Detail = *detail
	}
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Detail
	}
	return apiErr
}

// envelopeError reports the failure carried by a body without "data", if any.
func envelopeError(r record) error {
	if r.has("data") {
		return nil
	}
	errMsg, err := r.optString("error")
	if err != nil {
		return err
	}
	detail, err := r.optString("message")
	if err != nil {
		return err
	}
	if apiErr := newAPIError(errMsg, detail); apiErr != nil {
		return apiErr
	}
	return nil
}
