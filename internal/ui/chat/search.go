// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
	"github.com/jeranaias/nexuschat/internal/util"
)

// searchDebounce is how long typing must pause before a query is sent.
const searchDebounce = 200 * time.Millisecond

// searchPanel is the incremental search mode. Every keystroke bumps seq;
// only the query of the latest seq is sent and only its results are kept.
type searchPanel struct {
	input   textinput.Model
	limiter *rate.Limiter

	seq     int
	query   string
	results []api.SearchResult
	cursor  int
	pending bool
}

func newSearchPanel(perSecond float64, burst int) searchPanel {
	ti := textinput.New()
	ti.Prompt = "Search: "
	ti.Placeholder = "text in any conversation"
	ti.CharLimit = 256
	return searchPanel{input: ti, limiter: rate.NewLimiter(rateLimit(perSecond), max(burst, 1))}
}

// rateLimit converts a configured queries-per-second value.
func rateLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Limit(4)
	}
	return rate.Limit(perSecond)
}

// reset clears the query and results.
func (s *searchPanel) reset() {
	s.seq++
	s.input.SetValue("")
	s.query = ""
	s.results = nil
	s.cursor = 0
	s.pending = false
}

// edited records a change to the query and schedules it.
func (s *searchPanel) edited() tea.Cmd {
	s.seq++
	seq := s.seq
	if strings.TrimSpace(s.input.Value()) == "" {
		s.query, s.results, s.cursor, s.pending = "", nil, 0, false
		return nil
	}
	s.pending = true
	return tea.Tick(searchDebounce, func(time.Time) tea.Msg { return searchFireMsg{seq: seq} })
}

// fire runs the query for seq if it is still current and the limiter allows
// it. Otherwise it reschedules for when a token is available.
func (s *searchPanel) fire(ctx context.Context, seq int, now time.Time, search func(context.Context, string) ([]api.SearchResult, error)) tea.Cmd {
	if seq != s.seq {
		return nil
	}
	r := s.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return tea.Tick(d, func(time.Time) tea.Msg { return searchFireMsg{seq: seq} })
	}

	query := strings.TrimSpace(s.input.Value())
	return func() tea.Msg {
		results, err := search(ctx, query)
		return searchResultMsg{seq: seq, query: query, results: results, err: err}
	}
}

// apply stores results unless a newer query was typed meanwhile.
func (s *searchPanel) apply(msg searchResultMsg) bool {
	if msg.seq != s.seq {
		return false
	}
	s.pending = false
	if msg.err != nil {
		return true
	}
	s.query = msg.query
	s.results = msg.results
	s.cursor = 0
	return true
}

func (s *searchPanel) move(delta int) {
	if len(s.results) == 0 {
		return
	}
	s.cursor = (s.cursor + delta + len(s.results)) % len(s.results)
}

// selected returns the result under the cursor.
func (s *searchPanel) selected() (api.SearchResult, bool) {
	if s.cursor < 0 || s.cursor >= len(s.results) {
		return api.SearchResult{}, false
	}
	return s.results[s.cursor], true
}

func (s *searchPanel) view(theme *styles.Theme, width, height int) string {
	lines := []string{s.input.View(), ""}

	switch {
	case s.pending:
		lines = append(lines, theme.Help.Render("searching..."))
	case s.query == "":
		lines = append(lines, theme.Help.Render("Type to search all conversations. Enter opens, Esc returns."))
	case len(s.results) == 0:
		lines = append(lines, theme.Help.Render(fmt.Sprintf("No messages match %q.", s.query)))
	default:
		lines = append(lines, theme.Help.Render(fmt.Sprintf("%d results for %q", len(s.results), s.query)))
	}

	room := height - len(lines)
	start := 0
	if s.cursor >= room && room > 0 {
		start = s.cursor - room + 1
	}
	for i := start; i < len(s.results) && i-start < room; i++ {
		r := s.results[i]
		name := r.SessionName
		if name == "" {
			name = fmt.Sprintf("#%d", r.SessionID)
		}
		line := fmt.Sprintf("%s [%s] %s", name, r.Sender, util.FirstLine(r.Content))
		line = util.TruncateWidth(line, width-4)
		if i == s.cursor {
			line = theme.SidebarCursor.Render("> ") + theme.SidebarActive.Render(line)
		} else {
			line = "  " + theme.SidebarItem.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
