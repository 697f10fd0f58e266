package actionkit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InvalidPayloadError is an HTTP 400 with a message extracted from the
// response's nested errors container. Fatal, never retried.
type InvalidPayloadError struct {
	Message string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Message)
}

// AuthenticationError is an HTTP 401/403. The client memoizes it per
// (method, path) so repeated calls to the same endpoint fail fast.
type AuthenticationError struct {
	Method  string
	Path    string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s %s: %s", e.Method, e.Path, e.Message)
}

// RetriableError is an HTTP 429 or 5xx. The caller is expected to back
// off and resubmit; the client itself never retries.
type RetriableError struct {
	Status  int
	Message string
}

func (e *RetriableError) Error() string {
	return fmt.Sprintf("retriable api error (status %d): %s", e.Status, e.Message)
}

// FatalError is any other non-2xx response.
type FatalError struct {
	Status  int
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal api error (status %d): %s", e.Status, e.Message)
}

func IsRetriable(err error) bool {
	var re *RetriableError
	return errors.As(err, &re)
}

func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// extractErrorMessage unwraps the body of a 400 response. The API returns
// several shapes: {"errors": {...}}, a plain object, or a list. The first
// list element or object value found wins; unparseable bodies pass through
// as raw text.
func extractErrorMessage(body []byte) string {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if obj, ok := parsed.(map[string]any); ok {
		if inner, ok := obj["errors"]; ok {
			parsed = inner
		}
	}
	if obj, ok := parsed.(map[string]any); ok {
		for _, v := range obj {
			parsed = v
			break
		}
	}
	if list, ok := parsed.([]any); ok && len(list) > 0 {
		parsed = list[0]
	}
	if s, ok := parsed.(string); ok {
		return s
	}
	raw, err := json.Marshal(parsed)
	if err != nil {
		return string(body)
	}
	return string(raw)
}
