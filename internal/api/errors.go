// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	// ErrUnauthorized matches any 401 response (or a redirect to the login page).
	ErrUnauthorized = errors.New("authentication required")

	// ErrNotFound matches any 404 response.
	ErrNotFound = errors.New("not found")

	// ErrTransport wraps network-level failures: DNS, refused connections, resets.
	ErrTransport = errors.New("transport failure")

	// ErrEmptyResponse is returned when a 2xx response has no body to decode.
	ErrEmptyResponse = errors.New("empty response from server")

	// ErrMalformedResponse is returned when a 2xx body is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed response from server")

	// ErrInvalidRequest is returned when a request fails client-side validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Message is the server's "error" field, or a status-derived message.
	Message string
	// Method and Path identify the failed request.
	Method string
	Path   string
}

// Error implements the error interface. Only the message is shown so it can be
// displayed inline without further formatting.
func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is match status-based sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// statusMessage builds the fallback message for a response without an error body.
func statusMessage(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("request failed with status %d", status)
	}
	return fmt.Sprintf("request failed with status %d (%s)", status, text)
}

// IsUnauthorized reports whether err means the session cookie is missing or expired.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
