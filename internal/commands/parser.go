// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ParseResult is one line of input split into a command and its arguments.
type ParseResult struct {
	IsCommand   bool
	Command     *Command // nil when CommandName is not registered
	CommandName string   // as typed, e.g. "/o"
	Args        []string
	RawArgs     string
}

// Parser resolves slash commands against a registry.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser. A nil registry parses without lookups.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse splits input. Text that does not start with "/" is a chat message
// and yields a zero ParseResult.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}
	}

	name, rest := input, ""
	if i := strings.IndexFunc(input, unicode.IsSpace); i >= 0 {
		name, rest = input[:i], strings.TrimSpace(input[i:])
	}
	res := ParseResult{
		IsCommand:   true,
		CommandName: name,
		RawArgs:     rest,
		Args:        splitCommandLine(rest),
	}
	if p.registry != nil {
		res.Command = p.registry.Get(name)
	}
	return res
}

// IsCommand reports whether input is a slash command rather than a message.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ParseArgs splits an argument string the way a shell would for the simple
// cases: whitespace separates, quotes group.
func ParseArgs(input string) []string {
	return splitCommandLine(input)
}

// splitCommandLine tokenizes input. Inside quotes a backslash escapes a quote
// or another backslash; adjacent quoted parts join into one token, and an
// empty pair of quotes is an empty token.
func splitCommandLine(input string) []string {
	var (
		out     []string
		tok     strings.Builder
		quote   rune // the open quote, or 0
		started bool // tok holds a token, possibly empty
	)
	flush := func() {
		if started {
			out = append(out, tok.String())
			tok.Reset()
			started = false
		}
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0 && r == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			i++
			tok.WriteRune(runes[i])
		case quote != 0:
			tok.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			started = true
		case unicode.IsSpace(r):
			flush()
		default:
			tok.WriteRune(r)
			started = true
		}
	}
	flush()
	return out
}

// ValidateArgs checks required arguments and enum values of cmd.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "required argument missing", Expected: def.Description}
			}
			continue
		}
		if def.Type != ArgTypeEnum || len(def.Values) == 0 {
			continue
		}
		if !slices.ContainsFunc(def.Values, func(v string) bool { return strings.EqualFold(v, args[i]) }) {
			return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "invalid value", Got: args[i], Expected: strings.Join(def.Values, ", ")}
		}
	}
	return nil
}

// ValidationError is a slash command argument that is missing or not allowed.
// It matches ErrUsage.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Unwrap() error { return ErrUsage }

func (e *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Command, e.Message)
	if e.Arg != "" {
		fmt.Fprintf(&sb, " <%s>", e.Arg)
	}
	if e.Got != "" {
		fmt.Fprintf(&sb, " %q", e.Got)
	}
	if e.Expected != "" {
		fmt.Fprintf(&sb, " (expected %s)", e.Expected)
	}
	return sb.String()
}
