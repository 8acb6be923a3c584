// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the client's view state and the reducer that updates it.
//
// State is a plain value. Reduce computes the next State from the current one
// and an Action without side effects; Store serializes dispatches and notifies
// subscribers with the (prev, next) pair so renderers can project the change.
package state

import (
	"time"

	"github.com/jeranaias/nexuschat/internal/api"
)

// View is the top-level screen.
type View int

const (
	ViewLogin View = iota
	ViewChat
)

func (v View) String() string {
	if v == ViewChat {
		return "chat"
	}
	return "login"
}

// Role is who a thread entry belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks client-generated notes such as upload results.
	RoleSystem Role = "system"
	// RoleError marks inline failure messages.
	RoleError Role = "error"
)

// RoleFromSender maps a server sender to a Role.
func RoleFromSender(sender string) Role {
	if sender == api.SenderUser {
		return RoleUser
	}
	return RoleAssistant
}

// Entry is one rendered message in the thread.
type Entry struct {
	Role Role
	Text string
	At   time.Time
}

// NoticeLevel grades a Notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a transient status line. The zero value means no notice.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// IsZero reports whether there is no notice.
func (n Notice) IsZero() bool { return n.Text == "" }

// State is the complete client view state.
//
// Invariants kept by Reduce:
//   - ActiveID is 0 when no conversation is active
//   - starting a new conversation clears ActiveID, ActiveFile and Thread
//   - Thread only ever receives entries for ActiveID
type State struct {
	View View
	User *api.Profile

	// ActiveID is the displayed session, 0 for none.
	ActiveID int64
	// ActiveFile is the upload follow-up questions refer to.
	ActiveFile *api.UploadedItem

	// Typing is set while an assistant reply for the active thread is awaited.
	Typing bool
	// Sending blocks a second message submission until the first one resolves.
	Sending bool
	// SendingID is the session the in-flight message was sent to.
	SendingID int64
	// PendingLoad is the session whose load was requested last, 0 for none.
	PendingLoad int64

	Thread []Entry
	// ThreadEpoch changes whenever Thread is replaced or cleared rather than
	// appended to.
	ThreadEpoch uint64

	Sessions []api.Session
	Notice   Notice
}

// HasActive reports whether a conversation is active.
func (s State) HasActive() bool { return s.ActiveID != 0 }

// ActiveSession returns the listed session matching ActiveID.
func (s State) ActiveSession() (api.Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == s.ActiveID && s.ActiveID != 0 {
			return sess, true
		}
	}
	return api.Session{}, false
}

// ActiveTitle is the title of the active conversation, or "New Chat".
func (s State) ActiveTitle() string {
	if sess, ok := s.ActiveSession(); ok && sess.Title != "" {
		return sess.Title
	}
	return api.DefaultSessionTitle
}

// Initial is the state before anything is known about the user.
func Initial() State {
	return State{View: ViewLogin}
}
