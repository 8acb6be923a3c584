// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeDark  = "dark"
	ModeLight = "light"
	ModeAuto  = "auto"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Mode is the configured mode; IsDark is what it resolved to.
	Mode         string
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App    lipgloss.Style
	Header lipgloss.Style
	Brand  lipgloss.Style
	Title  lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar        lipgloss.Style
	SidebarSection lipgloss.Style
	SidebarItem    lipgloss.Style
	SidebarActive  lipgloss.Style
	SidebarCursor  lipgloss.Style
	SidebarIndex   lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	ErrorBubble     lipgloss.Style
	Timestamp       lipgloss.Style
	Typing          lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputBox     lipgloss.Style
	InputPrompt  lipgloss.Style
	StatusBar    lipgloss.Style
	ActiveFile   lipgloss.Style
	NoticeInfo   lipgloss.Style
	NoticeError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// LOGIN FORM
	// ==========================================================================

	LoginBox   lipgloss.Style
	LoginTitle lipgloss.Style
	FieldLabel lipgloss.Style
	FieldFocus lipgloss.Style
	Help       lipgloss.Style

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme creates a theme for mode ("dark", "light" or "auto"). Unknown
// modes behave like "auto".
func NewTheme(mode string) *Theme {
	mode = strings.ToLower(strings.TrimSpace(mode))

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		mode = ModeAuto
		isDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor consults this, so forcing a mode recolors the whole palette.
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Mode:         mode,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	t.Header = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.Brand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarSection = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true).
		MarginTop(1)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.SidebarActive = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)
	t.SidebarCursor = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.SidebarIndex = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.AssistantBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder)
	t.SystemBubble = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(SystemBubbleBorder).
		PaddingLeft(1)
	t.ErrorBubble = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Typing = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input and status
	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)
	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ActiveFile = lipgloss.NewStyle().
		Foreground(Emerald)
	t.NoticeInfo = lipgloss.NewStyle().
		Foreground(Cyan)
	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Login form
	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)
	t.LoginTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		MarginBottom(1)
	t.FieldLabel = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.FieldFocus = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)
	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.InfoStyle = lipgloss.NewStyle().Foreground(Cyan)
}

// Success renders text with the success indicator.
func (t *Theme) Success(text string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success) + " " + text
}

// Error renders text with the error indicator.
func (t *Theme) Error(text string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error) + " " + text
}

// Info renders text with the info indicator.
func (t *Theme) Info(text string) string {
	return t.InfoStyle.Render(StatusIndicators.Info) + " " + text
}
