// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

// node is one rendered message. The source is kept so a resize can re-render.
type node struct {
	role     state.Role
	text     string
	rendered string
}

// Transcript renders the thread for the TUI. It is not safe for concurrent
// use; Bubble Tea drives it from a single goroutine.
type Transcript struct {
	theme  *styles.Theme
	width  int
	md     *glamour.TermRenderer
	nodes  []node
	typing bool
	// typingFrame prefixes the typing text, e.g. a spinner frame.
	typingFrame string
}

// NewTranscript creates an empty transcript wrapping at width columns.
func NewTranscript(theme *styles.Theme, width int) *Transcript {
	t := &Transcript{theme: theme}
	t.SetWidth(width)
	return t
}

// AppendMessage implements Renderer.
func (t *Transcript) AppendMessage(role state.Role, text string) {
	n := node{role: role, text: text}
	n.rendered = t.renderNode(n)
	t.nodes = append(t.nodes, n)
}

// SetTyping implements Renderer.
func (t *Transcript) SetTyping(on bool) {
	t.typing = on
}

// Clear implements Renderer.
func (t *Transcript) Clear() {
	t.nodes = nil
	t.typing = false
}

// SetTypingFrame sets the animation frame shown before the typing text.
func (t *Transcript) SetTypingFrame(frame string) {
	t.typingFrame = frame
}

// Typing reports whether the typing indicator is shown.
func (t *Transcript) Typing() bool { return t.typing }

// Len returns the number of rendered messages.
func (t *Transcript) Len() int { return len(t.nodes) }

// SetWidth changes the wrap width and re-renders every message.
func (t *Transcript) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == t.width && t.md != nil {
		return
	}
	t.width = width

	md, err := newMarkdown(t.theme.IsDark, t.theme.ColorProfile, width-4)
	if err != nil {
		md = nil // assistant text falls back to plain wrapping
	}
	t.md = md

	for i := range t.nodes {
		t.nodes[i].rendered = t.renderNode(t.nodes[i])
	}
}

// SetTheme switches styles and re-renders every message.
func (t *Transcript) SetTheme(theme *styles.Theme) {
	t.theme = theme
	t.md = nil
	t.SetWidth(t.width)
}

// View returns the whole transcript. The TUI puts it in a viewport and
// scrolls to the bottom after each change.
func (t *Transcript) View() string {
	parts := make([]string, 0, len(t.nodes)+1)
	for _, n := range t.nodes {
		parts = append(parts, n.rendered)
	}
	if t.typing {
		line := TypingText
		if t.typingFrame != "" {
			line = t.typingFrame + " " + line
		}
		parts = append(parts, t.theme.Typing.Render(line))
	}
	return strings.Join(parts, "\n\n")
}

func (t *Transcript) renderNode(n node) string {
	inner := t.width - 4

	switch n.role {
	case state.RoleUser:
		label := t.theme.UserLabel.Render("you")
		bubble := t.theme.UserBubble.Width(inner).Render(n.text)
		return lipgloss.JoinVertical(lipgloss.Left, label, bubble)

	case state.RoleAssistant:
		label := t.theme.AssistantLabel.Render("assistant")
		body := t.renderMarkdown(n.text)
		return lipgloss.JoinVertical(lipgloss.Left, label, body)

	case state.RoleError:
		return t.theme.ErrorBubble.Width(inner).Render(styles.StatusIndicators.Error + " " + n.text)

	default:
		return t.theme.SystemBubble.Width(inner).Render(styles.StatusIndicators.Info + " " + n.text)
	}
}

func (t *Transcript) renderMarkdown(text string) string {
	if t.md != nil {
		if out, err := t.md.Render(text); err == nil {
			return strings.Trim(out, "\n")
		}
	}
	return lipgloss.NewStyle().Width(t.width - 2).Render(text)
}
