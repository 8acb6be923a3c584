// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

// eraseLine returns the cursor to column 0 and clears the line.
const eraseLine = "\r\x1b[2K"

// StreamOptions configures a Stream.
type StreamOptions struct {
	// Interactive enables the erasable typing line. Without it no typing
	// indicator is written, so redirected output stays clean.
	Interactive bool
	// Markdown renders assistant replies with glamour.
	Markdown bool
	// Width is the wrap width for markdown.
	Width int
	// Theme colors labels; nil means plain labels.
	Theme *styles.Theme
}

// Stream writes the thread to an io.Writer, one message after another.
type Stream struct {
	w      io.Writer
	opts   StreamOptions
	md     *glamour.TermRenderer
	typing bool
}

// NewStream creates a Stream writing to w.
func NewStream(w io.Writer, opts StreamOptions) *Stream {
	s := &Stream{w: w, opts: opts}
	if opts.Markdown {
		dark, profile := true, termenv.Ascii
		if opts.Theme != nil {
			dark, profile = opts.Theme.IsDark, opts.Theme.ColorProfile
		}
		if md, err := newMarkdown(dark, profile, opts.Width); err == nil {
			s.md = md
		}
	}
	return s
}

// AppendMessage implements Renderer.
func (s *Stream) AppendMessage(role state.Role, text string) {
	s.eraseTyping()

	switch role {
	case state.RoleUser:
		fmt.Fprintf(s.w, "%s %s\n", s.label(role, "you>"), text)
	case state.RoleAssistant:
		body := text
		if s.md != nil {
			if out, err := s.md.Render(text); err == nil {
				body = strings.Trim(out, "\n")
			}
		}
		fmt.Fprintf(s.w, "%s\n%s\n", s.label(role, "assistant:"), body)
	case state.RoleError:
		fmt.Fprintf(s.w, "%s %s\n", s.label(role, styles.StatusIndicators.Error), text)
	default:
		fmt.Fprintf(s.w, "%s %s\n", s.label(role, styles.StatusIndicators.Info), text)
	}
}

// SetTyping implements Renderer.
func (s *Stream) SetTyping(on bool) {
	if !s.opts.Interactive {
		return
	}
	if on && !s.typing {
		fmt.Fprint(s.w, s.label(state.RoleSystem, TypingText))
		s.typing = true
		return
	}
	if !on {
		s.eraseTyping()
	}
}

// Clear implements Renderer. A stream cannot unprint, so it marks the start
// of a new thread instead.
func (s *Stream) Clear() {
	s.eraseTyping()
	fmt.Fprintln(s.w, s.label(state.RoleSystem, "--- conversation ---"))
}

func (s *Stream) eraseTyping() {
	if s.typing {
		fmt.Fprint(s.w, eraseLine)
		s.typing = false
	}
}

func (s *Stream) label(role state.Role, text string) string {
	t := s.opts.Theme
	if t == nil {
		return text
	}
	var style lipgloss.Style
	switch role {
	case state.RoleUser:
		style = t.UserLabel
	case state.RoleAssistant:
		style = t.AssistantLabel
	case state.RoleError:
		style = t.ErrorStyle
	default:
		style = t.Typing
	}
	return style.Render(text)
}
