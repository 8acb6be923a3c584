// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/history"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
	"github.com/jeranaias/nexuschat/internal/util"
)

// sidebarRow is either a section heading or a numbered session.
type sidebarRow struct {
	heading string
	// index is the 1-based list number, the one /open accepts.
	index   int
	session api.Session
}

// sidebarRows lays sessions out in history order. Numbering runs across
// sections, matching commands.FormatHistory.
func sidebarRows(sessions []api.Session, now time.Time) []sidebarRow {
	var rows []sidebarRow
	n := 0
	for _, section := range history.Group(sessions, now).Sections() {
		rows = append(rows, sidebarRow{heading: section.Label})
		for _, s := range section.Items {
			n++
			rows = append(rows, sidebarRow{index: n, session: s})
		}
	}
	return rows
}

// sidebarView renders rows into a column height lines tall, scrolled so the
// cursor (a 0-based list position) stays visible.
func sidebarView(theme *styles.Theme, rows []sidebarRow, activeID int64, cursor int, focused bool, width, height int) string {
	inner := width - 3 // border and padding
	if inner < 8 {
		inner = 8
	}

	if len(rows) == 0 {
		empty := theme.SidebarSection.Render("No conversations")
		return theme.Sidebar.Width(width - 1).Height(height).Render(empty)
	}

	lines := make([]string, 0, len(rows))
	cursorLine := 0
	for _, row := range rows {
		if row.heading != "" {
			lines = append(lines, theme.SidebarSection.Render(row.heading))
			continue
		}

		title := row.session.Title
		if title == "" {
			title = api.DefaultSessionTitle
		}
		num := theme.SidebarIndex.Render(fmt.Sprintf("%2d.", row.index))
		marker := " "
		if focused && row.index-1 == cursor {
			marker = theme.SidebarCursor.Render(">")
			cursorLine = len(lines)
		}
		text := util.TruncateWidth(title, inner-5)
		switch {
		case row.session.ID == activeID:
			text = theme.SidebarActive.Render(text)
		default:
			text = theme.SidebarItem.Render(text)
		}
		lines = append(lines, marker+num+" "+text)
	}

	// SidebarSection adds a top margin, so a heading may take two lines;
	// the window is computed on the joined output.
	out := strings.Split(strings.Join(lines, "\n"), "\n")
	if focused {
		cursorLine = lineOffset(lines, cursorLine)
	}
	if height > 0 && len(out) > height {
		start := 0
		if cursorLine >= height {
			start = cursorLine - height + 1
		}
		if start+height > len(out) {
			start = len(out) - height
		}
		out = out[start : start+height]
	}

	return theme.Sidebar.Width(width - 1).Height(height).Render(strings.Join(out, "\n"))
}

// lineOffset converts an index into lines to a line number in their joined
// output, counting embedded newlines.
func lineOffset(lines []string, idx int) int {
	if idx >= len(lines) {
		return 0
	}
	off := 0
	for i := 0; i < idx; i++ {
		off += strings.Count(lines[i], "\n") + 1
	}
	return off + strings.Count(lines[idx], "\n")
}
