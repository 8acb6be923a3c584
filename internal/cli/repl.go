// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive line-oriented chat.
//
// Command: chat
// Short:   Chat without the full-screen interface
//
// Examples:
//   nexuschat chat               Start a new conversation
//   nexuschat chat --session 2   Continue the second listed conversation
//
// Interactive Commands:
//   The same slash commands as the full-screen interface (/help lists them).
//   Tab completes commands, conversation numbers and file paths.
//   Ctrl+C cancels the request in flight; at the prompt it exits.
//   Ctrl+D, exit or /quit exits.

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/render"
	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
	"github.com/jeranaias/nexuschat/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// lineEditor is the part of liner the REPL uses.
type lineEditor interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// linerEditor persists input history to a file across runs.
type linerEditor struct {
	*liner.State
	historyFile string
	logger      *zap.Logger
}

func (a *App) openLiner(complete func(string) []string) (lineEditor, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string { return complete(input) })

	e := &linerEditor{State: line, historyFile: a.Config.Storage.HistoryFile, logger: a.Logger}
	if e.historyFile != "" {
		if f, err := os.Open(e.historyFile); err == nil {
			if _, err := line.ReadHistory(f); err != nil {
				a.Logger.Warn("read chat history", zap.Error(err))
			}
			f.Close()
		}
	}
	return e, nil
}

// Close saves the history with 0600 permissions and restores the terminal.
func (e *linerEditor) Close() error {
	if e.historyFile != "" {
		var buf bytes.Buffer
		if _, err := e.State.WriteHistory(&buf); err == nil {
			if err := util.AtomicWriteFile(e.historyFile, buf.Bytes(), 0600); err != nil {
				e.logger.Warn("save chat history", zap.Error(err))
			}
		}
	}
	return e.State.Close()
}

// =============================================================================
// REPL
// =============================================================================

func (a *App) runREPL(ctx context.Context, args Args) error {
	if err := a.Chat.Bootstrap(ctx); err != nil {
		return err
	}
	if a.Chat.State().View != state.ViewChat {
		fmt.Fprintln(a.Err, warning("Not logged in."))
		if err := a.runLogin(ctx, Args{Quiet: true, Params: NewArgParser(nil)}); err != nil {
			return err
		}
	}
	if target := args.Params.Flag("session", "s"); target != "" {
		id, err := a.resolve(target)
		if err != nil {
			return err
		}
		if err := a.Chat.LoadConversation(ctx, id); err != nil {
			return err
		}
	}

	registry := commands.NewRegistry()
	completer := commands.NewCompleter(registry)
	editor, err := a.newEditor(completer.Lines)
	if err != nil {
		return fmt.Errorf("open line editor: %w", err)
	}
	defer editor.Close()

	interactive := IsStdoutTTY()
	stream := render.NewStream(a.Out, render.StreamOptions{
		Interactive: interactive,
		Markdown:    interactive,
		Width:       GetTerminalWidth(),
		Theme:       a.theme(),
	})
	store := a.Chat.Store()
	detach := render.Attach(stream, store)
	defer detach()
	unwatch := store.Subscribe(a.printNotice)
	defer unwatch()

	if !args.Quiet {
		a.printBanner()
	}

	env := a.env()
	for ctx.Err() == nil {
		line, err := editor.Prompt(PromptStyle.Render("nexuschat> "))
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted) or Ctrl+D (io.EOF)
			fmt.Fprintln(a.Out)
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		editor.AppendHistory(line)

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}
		if a.replLine(ctx, env, registry, line) {
			break
		}
		if st := a.Chat.State(); st.View != state.ViewChat {
			if st.Notice.Text == chat.SessionExpiredMessage {
				return ErrNotLoggedIn
			}
			return nil
		}
	}

	if !args.Quiet {
		fmt.Fprintln(a.Out, MutedStyle.Render("Bye."))
	}
	return nil
}

// replLine runs one input line and reports whether the REPL should exit.
// Operation failures are already on screen through the store.
func (a *App) replLine(ctx context.Context, env *commands.Env, registry *commands.Registry, line string) (quit bool) {
	opCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var err error
	if commands.IsCommand(line) {
		err = registry.Execute(opCtx, env, line)
	} else {
		err = a.Chat.SendMessage(opCtx, line)
	}

	switch {
	case err == nil:
	case errors.Is(err, commands.ErrQuit):
		return true
	case errors.Is(err, commands.ErrUsage):
		fmt.Fprintln(a.Err, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+err.Error())
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		fmt.Fprintln(a.Err, warning("Cancelled"))
	default:
		a.Logger.Debug("repl operation failed", zap.String("input", util.TruncateRunes(line, 40)), zap.Error(err))
	}
	return false
}

// printNotice is a store listener writing new notices as they appear.
func (a *App) printNotice(prev, next state.State) {
	n := next.Notice
	if n == prev.Notice || n.IsZero() {
		return
	}
	if n.Level == state.NoticeError {
		fmt.Fprintln(a.Err, ErrorStyle.Render(styles.StatusIndicators.Error)+" "+n.Text)
		return
	}
	fmt.Fprintln(a.Out, MutedStyle.Render(styles.StatusIndicators.Info+" "+n.Text))
}

func (a *App) printBanner() {
	st := a.Chat.State()
	name := ""
	if st.User != nil {
		name = st.User.Username
	}
	fmt.Fprintln(a.Out, TitleStyle.Render("nexuschat")+" "+MutedStyle.Render(a.Config.Server.BaseURL))
	fmt.Fprintf(a.Out, "Signed in as %s, %d conversations. Type /help for commands, /quit to exit.\n", name, len(st.Sessions))
}
