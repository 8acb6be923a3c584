// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/util"
)

// =============================================================================
// NAVIGATION
// =============================================================================

func (r *Registry) handleHelp(ctx context.Context, env *Env, inv Invocation) error {
	if len(inv.Args) > 0 {
		name := inv.Args[0]
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		cmd := r.Get(name)
		if cmd == nil {
			return usageErrorf("no command %s", name)
		}
		env.printf("%s", describe(cmd))
		return nil
	}
	env.printf("%s", r.HelpText())
	return nil
}

// HelpText lists the visible commands by category.
func (r *Registry) HelpText() string {
	var sb strings.Builder
	sb.WriteString("Type a message and press Enter to chat. Commands:\n")
	groups := r.ByCategory()
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString("\n" + category + "\n")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			sb.WriteString("  " + util.PadWidth(usage, 30) + " " + cmd.Description + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describe(cmd *Command) string {
	var sb strings.Builder
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Name
	}
	sb.WriteString(usage + "\n  " + cmd.Description)
	if len(cmd.Aliases) > 0 {
		sb.WriteString("\n  aliases: " + strings.Join(cmd.Aliases, ", "))
	}
	for _, a := range cmd.Args {
		line := "\n  " + a.Name
		if a.Required {
			line += " (required)"
		}
		if a.Description != "" {
			line += ": " + a.Description
		}
		if len(a.Values) > 0 {
			line += " [" + strings.Join(a.Values, "|") + "]"
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func handleQuit(ctx context.Context, env *Env, inv Invocation) error {
	return ErrQuit
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func handleNew(ctx context.Context, env *Env, inv Invocation) error {
	env.Chat.NewConversation()
	return nil
}

func handleHistory(ctx context.Context, env *Env, inv Invocation) error {
	now := env.now()
	env.printf("%s", FormatHistory(env.Chat.History(now), env.Chat.State().ActiveID))
	return nil
}

// ResolveSession maps "3" to the third listed conversation and "#42" to
// session 42.
func ResolveSession(env *Env, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if id, ok := strings.CutPrefix(arg, "#"); ok {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return 0, usageErrorf("invalid session id %q", arg)
		}
		return n, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, usageErrorf("expected a list number or #id, got %q", arg)
	}
	sess, ok := env.Chat.SessionByIndex(env.now(), n)
	if !ok {
		return 0, usageErrorf("no conversation %d in the list", n)
	}
	return sess.ID, nil
}

func activeSession(env *Env) (int64, error) {
	id := env.Chat.State().ActiveID
	if id == 0 {
		return 0, usageErrorf("%v", chat.ErrNoActiveConversation)
	}
	return id, nil
}

func handleOpen(ctx context.Context, env *Env, inv Invocation) error {
	id, err := ResolveSession(env, inv.Args[0])
	if err != nil {
		return err
	}
	return env.Chat.LoadConversation(ctx, id)
}

func handleDelete(ctx context.Context, env *Env, inv Invocation) error {
	var (
		id  int64
		err error
	)
	if len(inv.Args) > 0 {
		id, err = ResolveSession(env, inv.Args[0])
	} else {
		id, err = activeSession(env)
	}
	if err != nil {
		return err
	}
	return env.Chat.DeleteConversation(ctx, id)
}

func handleRename(ctx context.Context, env *Env, inv Invocation) error {
	id, err := activeSession(env)
	if err != nil {
		return err
	}
	return env.Chat.RenameConversation(ctx, id, strings.Join(inv.Args, " "))
}

func handleSearch(ctx context.Context, env *Env, inv Invocation) error {
	query := strings.Join(inv.Args, " ")
	results, err := env.Chat.Search(ctx, query)
	if err != nil {
		return err
	}
	env.printf("%s", FormatSearchResults(query, results))
	return nil
}

func handleExport(ctx context.Context, env *Env, inv Invocation) error {
	format := env.ExportFormat
	if len(inv.Args) > 0 {
		format = strings.ToLower(inv.Args[0])
	}
	if format == "" {
		format = "json"
	}
	dir := env.ExportDir
	if len(inv.Args) > 1 {
		dir = inv.Args[1]
	}
	if dir == "" {
		dir = "."
	}
	_, err := env.Chat.Export(ctx, format, dir)
	return err
}

// =============================================================================
// FILES
// =============================================================================

func handleUpload(ctx context.Context, env *Env, inv Invocation) error {
	_, err := env.Chat.UploadFiles(ctx, inv.Args)
	return err
}

func handleAnalyze(ctx context.Context, env *Env, inv Invocation) error {
	_, err := env.Chat.AnalyzeImage(ctx, strings.Join(inv.Args, " "))
	return err
}

func handleAsk(ctx context.Context, env *Env, inv Invocation) error {
	_, err := env.Chat.AskAboutFile(ctx, strings.Join(inv.Args, " "))
	return err
}

func handleAnalyses(ctx context.Context, env *Env, inv Invocation) error {
	list, err := env.Chat.Analyses(ctx)
	if err != nil {
		return err
	}
	env.printf("%s", FormatAnalyses(list))
	return nil
}

// =============================================================================
// ACCOUNT
// =============================================================================

func handleProfile(ctx context.Context, env *Env, inv Invocation) error {
	p, err := env.Chat.Profile(ctx)
	if err != nil {
		return err
	}
	env.printf("%s", FormatProfile(p))
	return nil
}

func handleLogout(ctx context.Context, env *Env, inv Invocation) error {
	return env.Chat.Logout(ctx)
}
