// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render projects conversation state onto a terminal.
//
// A Renderer receives three operations: append a message, toggle the typing
// indicator, clear. Transcript implements it for the full-screen TUI and
// Stream for the line-oriented REPL. Sync translates a state transition into
// the minimal sequence of those operations.
package render

import (
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/nexuschat/internal/state"
)

// Renderer displays a conversation thread.
type Renderer interface {
	// AppendMessage adds one message at the bottom of the thread.
	AppendMessage(role state.Role, text string)
	// SetTyping shows or hides the "assistant is typing" indicator.
	SetTyping(on bool)
	// Clear removes every message and the typing indicator.
	Clear()
}

// TypingText is shown while a reply is awaited.
const TypingText = "assistant is typing..."

// Sync applies the transition prev -> next to r.
//
// A replaced or cleared thread (ThreadEpoch changed) is replayed from
// scratch; otherwise only entries past len(prev.Thread) are appended.
// The typing indicator is hidden before a reply is appended and shown after
// the user's message, so it always sits below the last message.
func Sync(r Renderer, prev, next state.State) {
	if next.ThreadEpoch != prev.ThreadEpoch {
		Replay(r, next)
		return
	}

	if prev.Typing && !next.Typing {
		r.SetTyping(false)
	}
	if len(next.Thread) > len(prev.Thread) {
		for _, e := range next.Thread[len(prev.Thread):] {
			r.AppendMessage(e.Role, e.Text)
		}
	}
	if !prev.Typing && next.Typing {
		r.SetTyping(true)
	}
}

// Replay clears r and renders the whole thread of s.
func Replay(r Renderer, s state.State) {
	r.Clear()
	for _, e := range s.Thread {
		r.AppendMessage(e.Role, e.Text)
	}
	if s.Typing {
		r.SetTyping(true)
	}
}

// Attach subscribes r to store and replays the current thread into it.
// The returned function detaches it.
func Attach(r Renderer, store *state.Store) (detach func()) {
	Replay(r, store.State())
	return store.Subscribe(func(prev, next state.State) {
		Sync(r, prev, next)
	})
}

// newMarkdown builds a glamour renderer matching the color profile and width.
func newMarkdown(dark bool, profile termenv.Profile, width int) (*glamour.TermRenderer, error) {
	style := "light"
	switch {
	case profile == termenv.Ascii:
		style = "notty"
	case dark:
		style = "dark"
	}
	if width < 20 {
		width = 20
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(profile),
	)
}
