// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing for nexuschat.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdLogin
	CmdSignup
	CmdLogout
	CmdProfile
	CmdSessions
	CmdSearch
	CmdUpload
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:      "tui",
	CmdChat:     "chat",
	CmdLogin:    "login",
	CmdSignup:   "signup",
	CmdLogout:   "logout",
	CmdProfile:  "profile",
	CmdSessions: "sessions",
	CmdSearch:   "search",
	CmdUpload:   "upload",
	CmdExport:   "export",
	CmdConfig:   "config",
	CmdVersion:  "version",
	CmdHelp:     "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// NeedsServer reports whether the command talks to the server.
func (c Command) NeedsServer() bool {
	switch c {
	case CmdConfig, CmdVersion, CmdHelp:
		return false
	}
	return true
}

// Interactive reports whether the command owns the terminal, in which case
// logs must not go to stderr.
func (c Command) Interactive() bool {
	return c == CmdTUI || c == CmdChat
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool
	Verbose    bool
	Quiet      bool
	NoColor    bool
	ConfigFile string
	Server     string
	Theme      string

	// Params holds the command's own flags and positionals.
	Params *ArgParser
}

// boolFlags never take a value, whatever command they are given to.
var boolFlags = []string{"confirm", "yes", "y", "password-stdin", "plain", "help", "h"}

const usageText = `nexuschat - terminal client for a NexusChat server

Usage:
  nexuschat                          Start the full-screen interface (default)
  nexuschat tui                      Same as above
  nexuschat chat [--session N]       Line-oriented chat with slash commands
  nexuschat login [username]         Log in (password read without echo)
    --password-stdin                 Read the password from stdin
  nexuschat signup [username] --email ADDR
                                     Create an account and log in
  nexuschat logout                   Log out and forget the stored cookies
  nexuschat profile                  Show the signed-in user

Conversations:
  nexuschat sessions [list]          List conversations by recency (alias: ls)
  nexuschat sessions show N          Print a conversation
    --plain                          Do not render markdown
  nexuschat sessions new [title]     Start a conversation
  nexuschat sessions rename N title  Rename a conversation still called "New Chat"
  nexuschat sessions delete N        Delete a conversation
    --confirm, -y                    Do not ask for confirmation
  nexuschat search QUERY             Search every message
  nexuschat upload [--session N] FILE...
                                     Upload files into a conversation
  nexuschat export [--format json|md|html] [--output DIR]
                                     Export the whole history to a file

  N is the number shown by "sessions list", or #ID for a session id.

Other:
  nexuschat config [show|path]       Show the configuration or its location
  nexuschat version                  Show version information
  nexuschat help                     Show this help

Global Flags:
  --config PATH      Use another config file
  --server URL       Override server.base_url
  --theme MODE       Override ui.theme (dark, light, auto)
  --json             Print results as JSON (list-like commands)
  --no-color         Disable colors
  -v, --verbose      Log to stderr as well as the log file
  -q, --quiet        Minimal output
  -h, --help         Show this help

Examples:
  nexuschat login ada
  nexuschat sessions --json
  nexuschat sessions show 2
  nexuschat search "invoice" --json
  nexuschat upload notes.pdf diagram.png
  nexuschat export --format md --output ~/backups

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "nexuschat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses argv (without the program name). Global flags may appear
// anywhere; the first remaining word selects the command.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	cmd := CmdTUI
	if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
		word := strings.ToLower(remaining[0])
		remaining = remaining[1:]
		switch word {
		case "tui", "ui":
			cmd = CmdTUI
		case "chat", "repl":
			cmd = CmdChat
		case "login":
			cmd = CmdLogin
		case "signup", "register":
			cmd = CmdSignup
		case "logout":
			cmd = CmdLogout
		case "profile", "whoami":
			cmd = CmdProfile
		case "sessions", "session", "history", "ls":
			cmd = CmdSessions
			if word == "ls" || word == "history" {
				remaining = append([]string{"list"}, remaining...)
			}
		case "search", "find":
			cmd = CmdSearch
		case "upload":
			cmd = CmdUpload
		case "export":
			cmd = CmdExport
		case "config":
			cmd = CmdConfig
		case "version":
			cmd = CmdVersion
		case "help":
			cmd = CmdHelp
		default:
			return CmdHelp, args, usageErrorf("unknown command %q, see 'nexuschat help'", word)
		}
	}

	args.Params = NewArgParser(remaining, boolFlags...)
	if args.Params.BoolFlag("help", "h") {
		cmd = CmdHelp
	}
	return cmd, args, nil
}

// parseGlobalFlags extracts the flags every command accepts and returns the
// rest in order.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		args      Args
		remaining []string
	)
	valueOf := func(i *int, name string) (string, error) {
		if *i+1 >= len(argv) {
			return "", usageErrorf("%s needs a value", name)
		}
		*i++
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			remaining = append(remaining, argv[i:]...)
			break
		}

		name, value, hasValue := strings.Cut(arg, "=")
		var err error
		switch name {
		case "--json":
			args.JSON = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--no-color":
			args.NoColor = true
		case "--version":
			remaining = append([]string{"version"}, remaining...)
		case "--config", "--server", "--theme":
			if !hasValue {
				value, err = valueOf(&i, name)
				if err != nil {
					return nil, args, err
				}
			}
			switch name {
			case "--config":
				args.ConfigFile = value
			case "--server":
				args.Server = value
			case "--theme":
				args.Theme = value
			}
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}
