// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the TUI and
// the REPL.
//
// # Key Types
//
//   - Registry: the built-in commands, looked up by name or alias
//   - Parser: splits input into a command name and quoted arguments
//   - Completer: tab completion of command names, enum values and paths
//   - Env: what a handler runs against (the chat controller and an output)
//
// # Usage
//
//	reg := commands.NewRegistry()
//	err := reg.Execute(ctx, env, "/open 3")
//	if errors.Is(err, commands.ErrQuit) {
//	    // leave
//	}
package commands
