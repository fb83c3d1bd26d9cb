package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized means the bearer token was rejected.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrInvalidCredentials means the login exchange was refused.
	ErrInvalidCredentials = errors.New("backend: invalid credentials")
	// ErrNotFound means the referenced resource does not exist.
	ErrNotFound = errors.New("backend: not found")
	// ErrValidation means the backend rejected the request payload.
	ErrValidation = errors.New("backend: validation failed")
)

// APIError is a non-2xx response from the shop API.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: status %d: %s", e.Op, e.Status, e.Detail)
}

// Unwrap maps the status onto the package sentinels so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		if e.Op == opLogin {
			return ErrInvalidCredentials
		}
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	}
	return nil
}

// Message returns the backend detail carried by err, or fallback when there is none.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// parseDetail understands FastAPI error bodies: {"detail": "..."} or
// {"detail": [{"msg": "..."}, ...]}.
func parseDetail(body []byte, status int) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil && text != "" {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return http.StatusText(status)
}
