// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for the line-oriented commands.
//
// Colors are disabled for piped output and when NO_COLOR is set.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Width(14)

	SuccessStyle = lipgloss.NewStyle().Foreground(styles.Emerald).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	MutedStyle   = lipgloss.NewStyle().Foreground(styles.TextMuted)

	// PromptStyle is the REPL prompt.
	PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
)

// RenderSeparator renders a horizontal rule, 60 columns unless width is given.
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return MutedStyle.Render(strings.Repeat("-", w))
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

func success(text string) string {
	return SuccessStyle.Render(styles.StatusIndicators.Success) + " " + text
}

func warning(text string) string {
	return WarningStyle.Render("[!]") + " " + text
}
