// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"time"

	"github.com/jeranaias/nexuschat/internal/api"
)

// Action is an input to Reduce.
type Action interface {
	action()
}

// Authenticated records a successful profile fetch or login.
type Authenticated struct {
	User api.Profile
}

// Unauthorized is dispatched on any 401. It returns to the login view and
// drops everything known about the previous user.
type Unauthorized struct {
	Message string
}

// LoggedOut is an explicit logout.
type LoggedOut struct{}

// SessionsLoaded replaces the session list with a fresh fetch.
type SessionsLoaded struct {
	Sessions []api.Session
}

// NewConversation starts an empty conversation.
type NewConversation struct{}

// ConversationCreated reports a session created for a first message.
type ConversationCreated struct {
	ID    int64
	Title string
}

// LoadRequested marks ID as the load whose response should be shown.
type LoadRequested struct {
	ID int64
}

// ConversationLoaded delivers a fetched session.
type ConversationLoaded struct {
	ID       int64
	Messages []api.Message
	// LatestUpload becomes the active file; nil when the session has none.
	LatestUpload *api.UploadedItem
}

// LoadFailed reports a failed load of ID.
type LoadFailed struct {
	ID  int64
	Err string
}

// ConversationDeleted reports a deleted session.
type ConversationDeleted struct {
	ID int64
}

// ConversationRenamed reports a renamed session.
type ConversationRenamed struct {
	ID    int64
	Title string
}

// SendStarted records a user message on its way to SessionID.
type SendStarted struct {
	SessionID int64
	Text      string
	At        time.Time
}

// ReplyReceived delivers the assistant's answer for SessionID.
type ReplyReceived struct {
	SessionID int64
	Text      string
	At        time.Time
}

// SendFailed reports a message that could not be delivered.
type SendFailed struct {
	SessionID int64
	Err       string
}

// FileUploaded reports a successful upload into SessionID.
type FileUploaded struct {
	SessionID int64
	Item      api.UploadedItem
	// Summary is a short description of the server's analysis, if any.
	Summary string
}

// UploadFailed reports one file that could not be uploaded.
type UploadFailed struct {
	SessionID int64
	Filename  string
	Err       string
}

// FileDeleted reports a deleted upload.
type FileDeleted struct {
	ItemID int64
}

// SystemNote appends a client-side note to the active thread.
// A non-zero SessionID restricts it to that conversation.
type SystemNote struct {
	SessionID int64
	Text      string
}

// SetNotice sets (or with an empty Text, clears) the status line.
type SetNotice struct {
	Notice Notice
}

func (Authenticated) action()       {}
func (Unauthorized) action()        {}
func (LoggedOut) action()           {}
func (SessionsLoaded) action()      {}
func (NewConversation) action()     {}
func (ConversationCreated) action() {}
func (LoadRequested) action()       {}
func (ConversationLoaded) action()  {}
func (LoadFailed) action()          {}
func (ConversationDeleted) action() {}
func (ConversationRenamed) action() {}
func (SendStarted) action()         {}
func (ReplyReceived) action()       {}
func (SendFailed) action()          {}
func (FileUploaded) action()        {}
func (UploadFailed) action()        {}
func (FileDeleted) action()         {}
func (SystemNote) action()          {}
func (SetNotice) action()           {}
