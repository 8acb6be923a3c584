// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/nexuschat/internal/api"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports the history to Markdown, one section per session.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts the document to Markdown.
func (e *MarkdownExporter) Export(doc *api.ExportDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("export document is nil")
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "exported: %s\n", exportDate(doc, e.options).Format(time.RFC3339))
	fmt.Fprintf(&sb, "sessions: %d\n", len(doc.Sessions))
	sb.WriteString("generator: nexuschat\n")
	sb.WriteString("---\n\n")

	sb.WriteString("# Chat History\n\n")

	if len(doc.Sessions) == 0 {
		sb.WriteString("_No conversations._\n")
	}

	for i, s := range doc.Sessions {
		fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(sessionTitle(s)))
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(s.CreatedAt))
		fmt.Fprintf(&sb, "- **Last Updated**: %s\n", formatTimestamp(s.UpdatedAt))
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(s.Messages))
		if len(s.UploadedFiles) > 0 {
			names := make([]string, 0, len(s.UploadedFiles))
			for _, f := range s.UploadedFiles {
				names = append(names, fmt.Sprintf("`%s` (%s)", f.Filename, f.FileType))
			}
			fmt.Fprintf(&sb, "- **Files**: %s\n", strings.Join(names, ", "))
		}
		sb.WriteString("\n")

		for _, msg := range s.Messages {
			label := roleLabel(msg.Sender)
			if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
				fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, ts)
			} else {
				fmt.Fprintf(&sb, "### %s\n\n", label)
			}
			sb.WriteString(strings.TrimSpace(msg.Content))
			sb.WriteString("\n\n")
		}

		if i < len(doc.Sessions)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from nexuschat on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// exportDate prefers the server's export stamp.
func exportDate(doc *api.ExportDocument, opts *Options) time.Time {
	if !doc.ExportDate.IsZero() {
		return doc.ExportDate.Time
	}
	return opts.now()
}

// escapeMarkdown escapes characters that would break headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
