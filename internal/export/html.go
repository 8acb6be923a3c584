// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/nexuschat/internal/api"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports the history to a single HTML page with embedded CSS.
// Code fences are highlighted with inline styles so the page has no
// external assets.
type HTMLExporter struct {
	options   *Options
	formatter *chromahtml.Formatter
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Theme != "light" {
		opts.Theme = "dark"
	}
	return &HTMLExporter{
		options:   opts,
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}
}

// Export converts the document to HTML.
func (e *HTMLExporter) Export(doc *api.ExportDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("export document is nil")
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("    <title>Chat History</title>\n")
	sb.WriteString("    <meta name=\"generator\" content=\"nexuschat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", exportDate(doc, e.options).Format(time.RFC3339))
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.options.Theme)
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString("            <h1>Chat History</h1>\n")
	fmt.Fprintf(&sb, "            <div class=\"metadata\"><span class=\"meta-item\"><strong>Sessions:</strong> %d</span></div>\n", len(doc.Sessions))
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	if len(doc.Sessions) == 0 {
		sb.WriteString("            <p class=\"empty\">No conversations.</p>\n")
	}
	for _, s := range doc.Sessions {
		e.renderSession(&sb, s)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>nexuschat</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderSession(sb *strings.Builder, s api.ExportSession) {
	fmt.Fprintf(sb, "            <section class=\"session\" id=\"session-%d\">\n", s.SessionID)
	fmt.Fprintf(sb, "                <h2>%s</h2>\n", html.EscapeString(sessionTitle(s)))
	fmt.Fprintf(sb, "                <p class=\"session-meta\">Created %s &middot; %d messages</p>\n",
		formatTimestamp(s.CreatedAt), len(s.Messages))

	if len(s.UploadedFiles) > 0 {
		sb.WriteString("                <ul class=\"files\">\n")
		for _, f := range s.UploadedFiles {
			fmt.Fprintf(sb, "                    <li><code>%s</code> <span class=\"file-type\">%s</span></li>\n",
				html.EscapeString(f.Filename), html.EscapeString(f.FileType))
		}
		sb.WriteString("                </ul>\n")
	}

	for _, msg := range s.Messages {
		e.renderMessage(sb, msg)
	}
	sb.WriteString("            </section>\n")
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg api.ExportMessage) {
	roleClass := "other"
	switch msg.Sender {
	case api.SenderUser, api.SenderAssistant:
		roleClass = msg.Sender
	}
	fmt.Fprintf(sb, "                <div class=\"message %s-message\">\n", roleClass)
	sb.WriteString("                    <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                        <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Sender)))
	if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
		fmt.Fprintf(sb, "                        <span class=\"timestamp\">%s</span>\n", ts)
	}
	sb.WriteString("                    </div>\n")
	sb.WriteString("                    <div class=\"message-content\">\n")
	sb.WriteString(e.formatContent(msg.Content))
	sb.WriteString("\n                    </div>\n")
	sb.WriteString("                </div>\n")
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")

// formatContent turns message text into paragraphs and highlighted code
// blocks. An unterminated fence runs to the end of the message.
func (e *HTMLExporter) formatContent(content string) string {
	var (
		out      []string
		para     []string
		code     []string
		lang     string
		inFence  bool
		flushPar = func() {
			if len(para) > 0 {
				out = append(out, "<p>"+strings.Join(para, "<br>\n")+"</p>")
				para = nil
			}
		}
	)

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				out = append(out, e.highlight(lang, strings.Join(code, "\n")))
				code, lang, inFence = nil, "", false
			} else {
				flushPar()
				lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				inFence = true
			}
			continue
		}
		if inFence {
			code = append(code, line)
			continue
		}
		if trimmed == "" {
			flushPar()
			continue
		}
		para = append(para, inlineCodeRegex.ReplaceAllString(html.EscapeString(trimmed), "<code class=\"inline-code\">$1</code>"))
	}

	if inFence {
		out = append(out, e.highlight(lang, strings.Join(code, "\n")))
	}
	flushPar()
	return strings.Join(out, "\n")
}

// highlight renders a code block with chroma. Falls back to an escaped
// <pre> block when tokenising fails.
func (e *HTMLExporter) highlight(language, code string) string {
	var sb strings.Builder
	sb.WriteString("<div class=\"code-block\">")
	if language != "" {
		fmt.Fprintf(&sb, "<div class=\"code-lang\">%s</div>", html.EscapeString(language))
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if e.options.Theme == "light" {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)

	var highlighted strings.Builder
	iterator, err := lexer.Tokenise(nil, code)
	if err == nil {
		err = e.formatter.Format(&highlighted, style, iterator)
	}
	if err != nil {
		fmt.Fprintf(&sb, "<pre><code>%s</code></pre>", html.EscapeString(code))
	} else {
		sb.WriteString(highlighted.String())
	}
	sb.WriteString("</div>")
	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --accent: #7aa2f7;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f1f8ff;
            --accent: #0366d6;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; border-bottom: 2px solid var(--border-color); }
        .header h1 { font-size: 28px; margin-bottom: 8px; }
        .metadata { font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 32px; }
        .session { margin-bottom: 40px; }
        .session h2 { font-size: 22px; border-bottom: 1px solid var(--border-color); padding-bottom: 6px; }
        .session-meta, .files { font-size: 13px; color: var(--text-muted); margin: 6px 0 16px; list-style: none; }
        .message { padding: 16px; margin-bottom: 12px; border-radius: 8px; border: 1px solid var(--border-color); }
        .user-message { background: var(--user-bg); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; }
        .role-label { font-weight: 600; color: var(--accent); }
        .timestamp { font-size: 12px; color: var(--text-muted); }
        .message-content p { margin-bottom: 10px; white-space: pre-wrap; }
        .code-block { margin: 12px 0; border-radius: 6px; overflow: hidden; }
        .code-block pre { padding: 12px; overflow-x: auto; font-family: var(--font-mono); font-size: 14px; }
        .code-lang { font-size: 12px; padding: 4px 12px; color: var(--text-muted); border-bottom: 1px solid var(--border-color); }
        .inline-code { font-family: var(--font-mono); font-size: 0.9em; padding: 1px 4px; border-radius: 3px; background: var(--bg-primary); }
        .footer { padding: 20px 32px; text-align: center; font-size: 14px; color: var(--text-muted); border-top: 1px solid var(--border-color); }

        @media print {
            body { padding: 0; }
            .message { page-break-inside: avoid; }
        }
    </style>
`
