// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for history exporters.
type Exporter interface {
	// Export converts the document to the target format and returns the content.
	Export(doc *api.ExportDocument) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Format names accepted by New.
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned for a format name New does not recognize.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatJSON, FormatMarkdown, FormatHTML}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string

	// Now stamps the footer and the file name. Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeTimestamps: true,
		Theme:             "dark",
		Now:               time.Now,
	}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// New returns the exporter for a format name. "markdown" is accepted as an
// alias for "md".
func New(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	case FormatHTML, "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports the document with the given exporter and writes it
// under opts.OutputDir. Returns the output file path.
func ExportToFile(doc *api.ExportDocument, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("%s_%s%s",
		sanitizeFilename(baseName(doc)),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return outputPath, nil
}

// WriteToDir exports the document in the named format into dir.
func WriteToDir(doc *api.ExportDocument, format, dir string, now time.Time) (string, error) {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return now }

	exporter, err := New(format, opts)
	if err != nil {
		return "", err
	}
	return ExportToFile(doc, exporter, opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func baseName(doc *api.ExportDocument) string {
	if doc != nil && doc.UserID > 0 {
		return fmt.Sprintf("chat_export_user%d", doc.UserID)
	}
	return "chat_export"
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(strings.TrimSpace(s)); len(runes) > maxLen {
		s = string(runes[:maxLen])
	} else {
		s = string(runes)
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat_export"
	}
	return string(result)
}

var titleCaser = cases.Title(language.English)

// roleLabel returns a display label for a message sender.
func roleLabel(sender string) string {
	sender = strings.TrimSpace(sender)
	switch sender {
	case "":
		return "Unknown"
	case api.SenderAssistant:
		return "Assistant"
	default:
		return titleCaser.String(sender)
	}
}

// sessionTitle returns the session name, or a placeholder for unnamed ones.
func sessionTitle(s api.ExportSession) string {
	if t := strings.TrimSpace(s.SessionName); t != "" {
		return t
	}
	return fmt.Sprintf("Session %d", s.SessionID)
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t api.Timestamp) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t api.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}
