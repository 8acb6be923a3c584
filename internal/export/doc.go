// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the server's chat history export to local files.
//
// # Supported Formats
//
//   - JSON: the server document, pretty-printed
//   - Markdown: one section per session
//   - HTML: a single self-contained page with highlighted code fences
//
// # Usage
//
//	doc, err := client.Export(ctx)
//	path, err := export.WriteToDir(doc, "md", "~/exports", time.Now())
package export
