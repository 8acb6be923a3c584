// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the full-screen Bubble Tea frontend.
//
// The model never holds conversation state of its own. It subscribes to the
// controller's store, keeps the last state it rendered and projects each
// transition onto a render.Transcript with render.Sync. Every controller call
// runs inside a tea.Cmd so Update never blocks on the network.
//
// Layout:
//
//	header     brand, active conversation, signed-in user
//	sidebar    history grouped into Today / Yesterday / Previous 7 Days / Older
//	transcript scrollable viewport
//	input      textarea, slash commands with tab completion
//	status     notice, active file, key hints
package chat
