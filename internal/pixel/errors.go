package pixel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Detail     string // server-provided detail, verbatim
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// newAPIError extracts the "detail" field from an error body. FastAPI sends a
// string for HTTPException and a list of objects for validation failures; the
// latter is kept as raw JSON.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}
	if bytes.Equal(payload.Detail, []byte("null")) {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	apiErr.Detail = string(payload.Detail)
	return apiErr
}

// Message reduces err to the string shown to the user: the server detail when
// the backend supplied one, otherwise the transport error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
