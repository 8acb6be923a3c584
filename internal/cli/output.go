// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// output.go - JSON output for scripting.
//
// Every command that supports --json wraps its result in a JSONResponse so
// callers can check "success" without knowing the command.
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorType is the exit code category of the error
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		ErrorType: errorKind(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// sessionJSON is a listed session with its list number.
type sessionJSON struct {
	Index        int       `json:"index"`
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Bucket       string    `json:"bucket"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	Active       bool      `json:"active,omitempty"`
}

type messageJSON struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type uploadJSON struct {
	SessionID int64          `json:"session_id"`
	Uploaded  []uploadedJSON `json:"uploaded"`
	Failed    []failedJSON   `json:"failed"`
}

type uploadedJSON struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
}

type failedJSON struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}
