// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
	"github.com/jeranaias/nexuschat/internal/util"
)

// maxCompletionRows caps the completion popup above the input.
const maxCompletionRows = 5

// =============================================================================
// LAYOUT
// =============================================================================

// sidebarWidth is the sidebar column width, 0 when hidden.
func (m Model) sidebarWidth() int {
	if !m.showSidebar || m.width < 60 {
		return 0
	}
	w := m.cfg.UI.SidebarWidth
	if w <= 0 {
		w = 30
	}
	if w > m.width/2 {
		w = m.width / 2
	}
	return w
}

// bodyHeight is the height of the sidebar and transcript row.
func (m Model) bodyHeight() int {
	// header + input box (textarea + border) + status line
	h := m.height - 1 - (m.input.Height() + 2) - 1
	if n := len(m.completions); n > 0 {
		h -= min(n, maxCompletionRows)
	}
	if m.showHelp {
		h -= lipgloss.Height(m.fullHelp())
	}
	return max(h, 3)
}

// layout sizes every component to the window.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	mainWidth := m.width - m.sidebarWidth()
	m.transcript.SetWidth(mainWidth - 2)
	m.viewport.Width = mainWidth
	m.viewport.Height = m.bodyHeight()
	m.input.SetWidth(m.width - 2)
	m.help.Width = m.width
	m.refreshViewport(true)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the application.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.last.View == state.ViewLogin {
		notice := m.last.Notice
		box := m.login.view(m.theme, notice.Text, notice.Level == state.NoticeError)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	var sections []string
	sections = append(sections, m.headerView())

	main := m.viewport.View()
	if m.focus == focusSearch {
		main = m.search.view(m.theme, m.width-m.sidebarWidth(), m.bodyHeight())
		main = lipgloss.NewStyle().Height(m.bodyHeight()).Render(main)
	}
	if w := m.sidebarWidth(); w > 0 {
		rows := sidebarRows(m.last.Sessions, m.now())
		side := sidebarView(m.theme, rows, m.last.ActiveID, m.cursor, m.focus == focusSidebar, w, m.bodyHeight())
		main = lipgloss.JoinHorizontal(lipgloss.Top, side, main)
	}
	sections = append(sections, main)

	if m.showHelp {
		sections = append(sections, m.fullHelp())
	}
	if popup := m.completionView(); popup != "" {
		sections = append(sections, popup)
	}
	sections = append(sections, m.theme.InputBox.Render(m.input.View()))
	sections = append(sections, m.statusView())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	left := m.theme.Brand.Render("nexuschat") + "  " + m.theme.Title.Render(util.TruncateWidth(m.last.ActiveTitle(), m.width/2))
	right := ""
	if m.last.User != nil {
		right = m.last.User.Username
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) completionView() string {
	if len(m.completions) == 0 {
		return ""
	}
	var lines []string
	for i, c := range m.completions {
		if i >= maxCompletionRows {
			break
		}
		text := util.TruncateWidth(strings.TrimSpace(c), m.width-4)
		if i == m.compIndex {
			lines = append(lines, m.theme.SidebarCursor.Render("> ")+m.theme.SidebarActive.Render(text))
		} else {
			lines = append(lines, "  "+m.theme.SidebarItem.Render(text))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) fullHelp() string {
	h := m.help
	h.ShowAll = true
	return h.View(m.keys)
}

// statusView shows, in order of priority: a pending delete confirmation, the
// notice, the active file, the key hints.
func (m Model) statusView() string {
	width := m.width - 2
	var left string
	switch {
	case m.confirmDelete != 0:
		left = m.theme.NoticeError.Render(fmt.Sprintf("Delete conversation #%d? y/n", m.confirmDelete))
	case m.last.Notice.Level == state.NoticeError && m.last.Notice.Text != "":
		text := util.TruncateWidth(styles.StatusIndicators.Error+" "+util.FirstLine(m.last.Notice.Text), width)
		left = m.theme.NoticeError.Render(text)
	case m.last.Notice.Text != "":
		text := util.TruncateWidth(styles.StatusIndicators.Info+" "+util.FirstLine(m.last.Notice.Text), width)
		left = m.theme.NoticeInfo.Render(text)
	case m.last.ActiveFile != nil:
		left = m.theme.ActiveFile.Render(util.TruncateWidth("file: "+m.last.ActiveFile.OriginalFilename, width))
	default:
		left = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(left)
}
