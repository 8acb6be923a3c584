// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/export"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler runs a command.
type Handler func(ctx context.Context, env *Env, inv Invocation) error

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/open <n>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string
	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeIndex                 // Sidebar number or #session-id
	ArgTypeFile                  // File path
	ArgTypeEnum                  // One of predefined values
)

// Invocation is a parsed command line.
type Invocation struct {
	Name    string
	Args    []string
	RawArgs string
}

// Printer receives command output.
type Printer interface {
	Print(text string)
}

// PrinterFunc adapts a function to Printer.
type PrinterFunc func(text string)

// Print implements Printer.
func (f PrinterFunc) Print(text string) { f(text) }

// Env is what handlers run against.
type Env struct {
	Chat *chat.Controller
	Out  Printer

	// ExportFormat and ExportDir are used when /export omits them.
	ExportFormat string
	ExportDir    string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) printf(format string, args ...any) {
	if e.Out != nil {
		e.Out.Print(fmt.Sprintf(format, args...))
	}
}

var (
	// ErrQuit is returned by /quit.
	ErrQuit = errors.New("quit")

	// ErrUsage marks errors in the command line itself. Frontends show these;
	// failures of the operation a command runs are already surfaced through
	// the store.
	ErrUsage = errors.New("usage")

	// ErrUnknownCommand is returned for a slash command that is not registered.
	ErrUnknownCommand = fmt.Errorf("%w: unknown command", ErrUsage)
)

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias. Lookup ignores case.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute parses input and runs the command it names.
func (r *Registry) Execute(ctx context.Context, env *Env, input string) error {
	res := NewParser(r).Parse(input)
	if !res.IsCommand {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, input)
	}
	if res.Command == nil {
		return fmt.Errorf("%w: %s (try /help)", ErrUnknownCommand, res.CommandName)
	}
	if err := ValidateArgs(res.Command, res.Args); err != nil {
		return err
	}
	return res.Command.Handler(ctx, env, Invocation{
		Name:    res.Command.Name,
		Args:    res.Args,
		RawArgs: res.RawArgs,
	})
}

// categoryOrder is the help display order.
var categoryOrder = []string{"Conversation", "Files", "Account", "Navigation"}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Usage:       "/help [command]",
		Args:        []ArgDef{{Name: "command", Type: ArgTypeString, Description: "Command to describe"}},
		Category:    "Navigation",
		Handler:     r.handleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit nexuschat",
		Category:    "Navigation",
		Handler:     handleQuit,
	})

	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    "Conversation",
		Handler:     handleNew,
	})

	r.Register(&Command{
		Name:        "/history",
		Aliases:     []string{"/list", "/ls"},
		Description: "List conversations by recency",
		Category:    "Conversation",
		Handler:     handleHistory,
	})

	r.Register(&Command{
		Name:        "/open",
		Aliases:     []string{"/o", "/load"},
		Description: "Open a conversation by list number or #id",
		Usage:       "/open <n|#id>",
		Args:        []ArgDef{{Name: "conversation", Required: true, Type: ArgTypeIndex, Description: "list number or #id"}},
		Category:    "Conversation",
		Handler:     handleOpen,
	})

	r.Register(&Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Description: "Delete a conversation (default: the open one)",
		Usage:       "/delete [n|#id]",
		Args:        []ArgDef{{Name: "conversation", Type: ArgTypeIndex, Description: "list number or #id"}},
		Category:    "Conversation",
		Handler:     handleDelete,
	})

	r.Register(&Command{
		Name:        "/rename",
		Description: "Rename the open conversation",
		Usage:       "/rename <title>",
		Args:        []ArgDef{{Name: "title", Required: true, Type: ArgTypeString, Description: "new title"}},
		Category:    "Conversation",
		Handler:     handleRename,
	})

	r.Register(&Command{
		Name:        "/search",
		Aliases:     []string{"/find"},
		Description: "Search all messages",
		Usage:       "/search <query>",
		Args:        []ArgDef{{Name: "query", Required: true, Type: ArgTypeString, Description: "text to find"}},
		Category:    "Conversation",
		Handler:     handleSearch,
	})

	r.Register(&Command{
		Name:        "/export",
		Description: "Export all conversations to a file",
		Usage:       "/export [json|md|html] [dir]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: export.Formats(), Description: "file format"},
			{Name: "dir", Type: ArgTypeFile, Description: "output directory"},
		},
		Category: "Conversation",
		Handler:  handleExport,
	})

	r.Register(&Command{
		Name:        "/upload",
		Aliases:     []string{"/u"},
		Description: "Upload files into the conversation",
		Usage:       "/upload <path>...",
		Args:        []ArgDef{{Name: "path", Required: true, Type: ArgTypeFile, Description: "file to upload"}},
		Category:    "Files",
		Handler:     handleUpload,
	})

	r.Register(&Command{
		Name:        "/analyze",
		Description: "Describe the uploaded image",
		Usage:       "/analyze [prompt]",
		Args:        []ArgDef{{Name: "prompt", Type: ArgTypeString, Description: "what to look for"}},
		Category:    "Files",
		Handler:     handleAnalyze,
	})

	r.Register(&Command{
		Name:        "/ask",
		Description: "Ask about the uploaded file",
		Usage:       "/ask <question>",
		Args:        []ArgDef{{Name: "question", Required: true, Type: ArgTypeString, Description: "question"}},
		Category:    "Files",
		Handler:     handleAsk,
	})

	r.Register(&Command{
		Name:        "/analyses",
		Aliases:     []string{"/files"},
		Description: "List stored file analyses",
		Category:    "Files",
		Handler:     handleAnalyses,
	})

	r.Register(&Command{
		Name:        "/profile",
		Aliases:     []string{"/me"},
		Description: "Show your profile",
		Category:    "Account",
		Handler:     handleProfile,
	})

	r.Register(&Command{
		Name:        "/logout",
		Description: "Log out",
		Category:    "Account",
		Handler:     handleLogout,
	})
}
