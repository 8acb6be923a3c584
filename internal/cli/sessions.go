// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Conversation commands: sessions, search, upload, export.
//
// Conversations are addressed the way the slash commands address them: by
// the number "sessions list" prints, or by #id.

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/render"
	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

// =============================================================================
// SESSIONS
// =============================================================================

func (a *App) runSessions(ctx context.Context, args Args) error {
	p := args.Params
	sub := strings.ToLower(p.Subcommand())

	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	switch sub {
	case "", "list", "ls", "l":
		return a.listSessions(args)
	case "show", "view", "cat":
		return a.showSession(ctx, args)
	case "new", "create":
		return a.newSession(ctx, args)
	case "rename", "mv":
		return a.renameSession(ctx, args)
	case "delete", "rm", "remove":
		return a.deleteSession(ctx, args)
	default:
		return usageErrorf("unknown sessions subcommand %q (list, show, new, rename, delete)", sub)
	}
}

func (a *App) listSessions(args Args) error {
	now := a.Now()
	buckets := a.Chat.History(now)
	if !args.JSON {
		fmt.Fprintln(a.Out, commands.FormatHistory(buckets, a.Chat.State().ActiveID))
		return nil
	}

	out := make([]sessionJSON, 0, buckets.Len())
	for _, section := range buckets.Sections() {
		for _, s := range section.Items {
			out = append(out, sessionJSON{
				Index:        len(out) + 1,
				ID:           s.ID,
				Title:        s.Title,
				Bucket:       section.Bucket.String(),
				MessageCount: s.MessageCount,
				LastMessage:  s.LastMessage,
				UpdatedAt:    s.When(),
			})
		}
	}
	return a.writeJSON(CmdSessions, out)
}

// resolve maps a list number or #id to a session id.
func (a *App) resolve(arg string) (int64, error) {
	id, err := commands.ResolveSession(a.env(), arg)
	if err != nil {
		return 0, usageErrorf("%s", strings.TrimPrefix(err.Error(), "usage: "))
	}
	return id, nil
}

func (a *App) showSession(ctx context.Context, args Args) error {
	p := args.Params
	if err := expectArgs(p, 1, 1, "nexuschat sessions show N"); err != nil {
		return err
	}
	id, err := a.resolve(p.Positional(1))
	if err != nil {
		return err
	}
	msgs, err := a.Chat.Messages(ctx, id)
	if err != nil {
		return err
	}

	if args.JSON {
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageJSON{ID: m.ID, Sender: m.Sender, Content: m.Content, Timestamp: m.When()})
		}
		return a.writeJSON(CmdSessions, map[string]any{"session_id": id, "messages": out})
	}

	title := fmt.Sprintf("#%d", id)
	for _, s := range a.Chat.State().Sessions {
		if s.ID == id && s.Title != "" {
			title = fmt.Sprintf("%s (#%d)", s.Title, id)
		}
	}
	fmt.Fprintln(a.Out, TitleStyle.Render(title))
	fmt.Fprintln(a.Out, RenderSeparator())
	if len(msgs) == 0 {
		fmt.Fprintln(a.Out, MutedStyle.Render("No messages yet."))
		return nil
	}

	stream := render.NewStream(a.Out, render.StreamOptions{
		Markdown: !p.BoolFlag("plain") && IsStdoutTTY(),
		Width:    GetTerminalWidth(),
		Theme:    a.theme(),
	})
	for _, m := range msgs {
		stream.AppendMessage(state.RoleFromSender(m.Sender), m.Content)
	}
	return nil
}

func (a *App) newSession(ctx context.Context, args Args) error {
	id, err := a.Chat.CreateConversation(ctx, args.Params.JoinFrom(1))
	if err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdSessions, map[string]int64{"session_id": id})
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success(fmt.Sprintf("Created conversation #%d", id)))
	}
	return nil
}

func (a *App) renameSession(ctx context.Context, args Args) error {
	p := args.Params
	if err := expectArgs(p, 1, 2, "nexuschat sessions rename N title"); err != nil {
		return err
	}
	id, err := a.resolve(p.Positional(1))
	if err != nil {
		return err
	}
	title := p.JoinFrom(2)
	if err := a.Chat.RenameConversation(ctx, id, title); err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdSessions, map[string]any{"session_id": id, "title": title})
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success(fmt.Sprintf("Renamed #%d to %q", id, title)))
	}
	return nil
}

func (a *App) deleteSession(ctx context.Context, args Args) error {
	p := args.Params
	if err := expectArgs(p, 1, 1, "nexuschat sessions delete N [--confirm]"); err != nil {
		return err
	}
	id, err := a.resolve(p.Positional(1))
	if err != nil {
		return err
	}

	if !p.BoolFlag("confirm", "yes", "y") {
		if args.JSON {
			return usageErrorf("--json requires --confirm for delete")
		}
		ok, err := a.Confirm(fmt.Sprintf("Delete conversation #%d?", id))
		if err != nil {
			return err
		}
		if !ok {
			return ErrCancelled
		}
	}

	if err := a.Chat.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdSessions, map[string]any{"session_id": id, "deleted": true})
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success(fmt.Sprintf("Deleted conversation #%d", id)))
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

func (a *App) runSearch(ctx context.Context, args Args) error {
	query := strings.TrimSpace(args.Params.JoinFrom(0))
	if query == "" {
		return usageErrorf("usage: nexuschat search QUERY")
	}
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	results, err := a.Chat.Search(ctx, query)
	if err != nil {
		return err
	}
	if args.JSON {
		if results == nil {
			results = []api.SearchResult{}
		}
		return a.writeJSON(CmdSearch, map[string]any{"query": query, "results": results})
	}
	fmt.Fprintln(a.Out, commands.FormatSearchResults(query, results))
	return nil
}

// =============================================================================
// UPLOAD
// =============================================================================

func (a *App) runUpload(ctx context.Context, args Args) error {
	p := args.Params
	paths := p.PositionalFrom(0)
	if len(paths) == 0 {
		return usageErrorf("usage: nexuschat upload [--session N] FILE...")
	}
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	if target := p.Flag("session", "s"); target != "" {
		id, err := a.resolve(target)
		if err != nil {
			return err
		}
		if err := a.Chat.LoadConversation(ctx, id); err != nil {
			return err
		}
	}

	report, err := a.Chat.UploadFiles(ctx, paths)
	if args.JSON {
		out := uploadJSON{SessionID: report.SessionID, Uploaded: []uploadedJSON{}, Failed: []failedJSON{}}
		for _, item := range report.Uploaded {
			out.Uploaded = append(out.Uploaded, uploadedJSON{ID: item.ID, Filename: item.OriginalFilename, FileType: item.FileType})
		}
		for _, f := range report.Failures {
			out.Failed = append(out.Failed, failedJSON{Path: f.Path, Error: f.Err.Error()})
		}
		if werr := a.writeJSON(CmdUpload, out); werr != nil {
			return werr
		}
		return err
	}

	for _, item := range report.Uploaded {
		fmt.Fprintln(a.Out, success(fmt.Sprintf("%s uploaded to #%d (%s)", item.OriginalFilename, report.SessionID, item.FileType)))
	}
	for _, f := range report.Failures {
		fmt.Fprintln(a.Out, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err))
	}
	if report.Failed() > 0 && report.Succeeded() > 0 {
		fmt.Fprintln(a.Out, warning(fmt.Sprintf("%d of %d files uploaded", report.Succeeded(), len(paths))))
	}
	return err
}

// =============================================================================
// EXPORT
// =============================================================================

func (a *App) runExport(ctx context.Context, args Args) error {
	p := args.Params
	format := strings.ToLower(p.FlagOrDefault("format", p.Positional(0)))
	if format == "" {
		format = a.Config.Export.Format
	}
	dir := p.Flag("output", "o")
	if dir == "" {
		dir = a.Config.Export.OutputDir
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	path, err := a.Chat.Export(ctx, format, dir)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdExport, map[string]string{"path": path, "format": format})
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success("Exported to "+path))
	} else {
		fmt.Fprintln(a.Out, path)
	}
	return nil
}

// theme builds the configured theme for colored labels.
func (a *App) theme() *styles.Theme {
	return styles.NewTheme(a.Config.UI.Theme)
}
