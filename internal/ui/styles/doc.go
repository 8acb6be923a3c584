// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the nexuschat TUI.
//
// Colors are lipgloss.AdaptiveColor values, so the same palette works on dark
// and light terminals. NewTheme resolves the configured mode ("dark",
// "light" or "auto") once; "auto" asks the terminal through termenv.
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	header := theme.Header.Render("NexusChat")
package styles
