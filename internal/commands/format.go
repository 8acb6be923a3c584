// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/history"
	"github.com/jeranaias/nexuschat/internal/util"
)

// FormatHistory renders grouped sessions as numbered lines; the numbers are
// what /open accepts. The active session is marked with '*'.
func FormatHistory(b history.Buckets[api.Session], activeID int64) string {
	if b.Len() == 0 {
		return "No conversations yet."
	}
	var sb strings.Builder
	n := 0
	for i, section := range b.Sections() {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(section.Label + "\n")
		for _, s := range section.Items {
			n++
			mark := " "
			if s.ID == activeID {
				mark = "*"
			}
			title := s.Title
			if title == "" {
				title = api.DefaultSessionTitle
			}
			fmt.Fprintf(&sb, "%s%3d. %s  (%d messages, #%d)\n", mark, n, util.TruncateWidth(title, 50), s.MessageCount, s.ID)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatSearchResults renders search hits, one per line.
func FormatSearchResults(query string, results []api.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No messages match %q.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d results for %q:\n", len(results), query)
	for _, r := range results {
		when := ""
		if !r.Timestamp.IsZero() {
			when = r.Timestamp.Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(&sb, "  #%d %s%s [%s]: %s\n", r.SessionID, when, r.SessionName, r.Sender,
			util.TruncateWidth(util.FirstLine(r.Content), 80))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatAnalyses renders stored analyses.
func FormatAnalyses(list []api.Analysis) string {
	if len(list) == 0 {
		return "No analyses for this conversation."
	}
	var sb strings.Builder
	for _, a := range list {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", a.Filename, a.AnalysisType, util.TruncateWidth(util.FirstLine(a.Summary), 100))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatProfile renders the user's profile.
func FormatProfile(p *api.Profile) string {
	joined := "unknown"
	if !p.JoinedDate.IsZero() {
		joined = p.JoinedDate.Format("2006-01-02")
	}
	lines := []string{
		fmt.Sprintf("%s <%s>", p.Username, p.Email),
		"Joined:        " + joined,
		fmt.Sprintf("Conversations: %d", p.TotalChats),
	}
	if p.Theme != "" {
		lines = append(lines, "Theme:         "+p.Theme)
	}
	if p.Language != "" {
		lines = append(lines, "Language:      "+p.Language)
	}
	return strings.Join(lines, "\n")
}
