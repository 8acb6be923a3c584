// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// nexuschat.
//
// # Key Types
//
//   - Command: enumeration of the subcommands
//   - Args: parsed global flags plus the command's own ArgParser
//   - App: everything a command runs against (controller, config, streams)
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	app := &cli.App{Chat: ctrl, Config: cfg, Out: os.Stdout, Err: os.Stderr}
//	err = app.Run(ctx, cmd, args)
//	os.Exit(cli.ExitCode(err))
//
// # Commands Overview
//
//   - tui: the Bubble Tea interface (default)
//   - chat: a liner REPL sharing the TUI's slash commands
//   - login, signup, logout, profile: account
//   - sessions, search, upload, export: conversations
//   - config, version, help
//
// List-like commands support --json.
package cli
