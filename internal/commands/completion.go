// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Completion is one candidate.
type Completion struct {
	// Value replaces the word being completed.
	Value       string
	Display     string
	Description string
	Score       int
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// IndexFn returns the list numbers that /open and /delete accept.
	IndexFn func() []string
	// FilesFn overrides path completion, mainly for tests.
	FilesFn func(prefix string) []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns completions for the word at the end of input.
func (c *Completer) Complete(input string) []Completion {
	if !strings.HasPrefix(strings.TrimLeft(input, " "), "/") {
		return nil
	}
	input = strings.TrimLeft(input, " ")

	parts := splitCommandLine(input)
	endsWithSpace := strings.HasSuffix(input, " ")

	if len(parts) <= 1 && !endsWithSpace {
		partial := ""
		if len(parts) == 1 {
			partial = parts[0]
		}
		return c.completeCommands(partial)
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2
	partial := parts[len(parts)-1]
	if endsWithSpace {
		argIndex++
		partial = ""
	}
	return c.completeArg(cmd, argIndex, partial)
}

// Lines returns whole-line candidates, the form line editors expect.
func (c *Completer) Lines(input string) []string {
	completions := c.Complete(input)
	if len(completions) == 0 {
		return nil
	}
	prefix := input
	if !strings.HasSuffix(input, " ") {
		if i := strings.LastIndexByte(input, ' '); i >= 0 {
			prefix = input[:i+1]
		} else {
			prefix = ""
		}
	}
	lines := make([]string, 0, len(completions))
	for _, comp := range completions {
		line := prefix + comp.Value
		if !strings.HasSuffix(comp.Value, string(os.PathSeparator)) {
			line += " "
		}
		lines = append(lines, line)
	}
	return lines
}

func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion
	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}
		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
		for _, alias := range cmd.Aliases {
			// Aliases only complete once typed in full.
			if alias == partial {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10,
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || len(cmd.Args) == 0 {
		return nil
	}
	if argIndex >= len(cmd.Args) {
		// A trailing file argument repeats, as in /upload a.txt b.txt.
		last := cmd.Args[len(cmd.Args)-1]
		if last.Type != ArgTypeFile {
			return nil
		}
		argIndex = len(cmd.Args) - 1
	}

	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeEnum:
		return completeFromList(arg.Values, partial)
	case ArgTypeIndex:
		if c.IndexFn != nil {
			return completeFromList(c.IndexFn(), partial)
		}
		return nil
	case ArgTypeFile:
		if c.FilesFn != nil {
			return completeFromList(c.FilesFn(partial), partial)
		}
		return completeFiles(partial)
	default:
		return nil
	}
}

// completeFiles lists directory entries matching partial.
func completeFiles(partial string) []Completion {
	dir := filepath.Dir(partial)
	prefix := filepath.Base(partial)
	if partial == "" || strings.HasSuffix(partial, string(os.PathSeparator)) {
		dir = partial
		if dir == "" {
			dir = "."
		}
		prefix = ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var completions []Completion
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			continue
		}
		// Skip hidden files unless asked for.
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		path := name
		if partial != "" && (dir != "." || strings.HasPrefix(partial, ".")) {
			path = filepath.Join(dir, name)
		}
		desc := ""
		score := calculateScore(name, prefix)
		if entry.IsDir() {
			path += string(os.PathSeparator)
			desc = "directory"
			score += 5
		} else if info, err := entry.Info(); err == nil {
			desc = humanize.IBytes(uint64(info.Size()))
		}

		completions = append(completions, Completion{Value: path, Display: name, Description: desc, Score: score})
	}

	sortCompletions(completions)
	if len(completions) > 20 {
		completions = completions[:20]
	}
	return completions
}

func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), lower) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore ranks a candidate; higher is better.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100
	if value == partial {
		return score + 100
	}
	if strings.HasPrefix(value, partial) {
		score += 50
		score += 20 - len(value)
	}
	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.SliceStable(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}
