// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/state"
	uichat "github.com/jeranaias/nexuschat/internal/ui/chat"
)

// App is what every command runs against.
type App struct {
	Chat       *chat.Controller
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Now defaults to time.Now.
	Now func() time.Time

	// ReadPassword reads a secret without echo. Defaults to the terminal.
	ReadPassword func(prompt string) (string, error)
	// Confirm asks a yes/no question. Defaults to a prompt on In/Out that
	// needs a terminal.
	Confirm func(question string) (bool, error)

	// newEditor opens the REPL line editor. Defaults to liner.
	newEditor func(complete func(string) []string) (lineEditor, error)

	in *bufio.Reader
}

func (a *App) setDefaults() {
	if a.In == nil {
		a.In = os.Stdin
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	if a.Config == nil {
		a.Config = config.Default()
		a.Config.SetDefaults()
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.ReadPassword == nil {
		a.ReadPassword = readPassword
	}
	if a.Confirm == nil {
		a.Confirm = a.confirmPrompt
	}
	if a.newEditor == nil {
		a.newEditor = a.openLiner
	}
	if a.in == nil {
		a.in = bufio.NewReader(a.In)
	}
}

// Run executes cmd. Errors are returned, not printed; see DisplayError and
// ExitCode.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	a.setDefaults()
	if args.Params == nil {
		args.Params = NewArgParser(nil)
	}
	if cmd.NeedsServer() && a.Chat == nil {
		return fmt.Errorf("%s: no server connection configured", cmd)
	}
	a.Logger.Debug("running command", zap.Stringer("command", cmd))

	switch cmd {
	case CmdTUI:
		return a.runTUI(ctx)
	case CmdChat:
		return a.runREPL(ctx, args)
	case CmdLogin:
		return a.runLogin(ctx, args)
	case CmdSignup:
		return a.runSignup(ctx, args)
	case CmdLogout:
		return a.runLogout(ctx, args)
	case CmdProfile:
		return a.runProfile(ctx, args)
	case CmdSessions:
		return a.runSessions(ctx, args)
	case CmdSearch:
		return a.runSearch(ctx, args)
	case CmdUpload:
		return a.runUpload(ctx, args)
	case CmdExport:
		return a.runExport(ctx, args)
	case CmdConfig:
		return a.runConfig(args)
	case CmdVersion:
		PrintVersion(a.Out)
		return nil
	default:
		PrintUsage(a.Out)
		return nil
	}
}

func (a *App) runTUI(ctx context.Context) error {
	return uichat.Run(ctx, uichat.Options{
		Controller: a.Chat,
		Config:     a.Config,
		Logger:     a.Logger,
		Now:        a.Now,
	}, a.ConfigPath)
}

// requireLogin checks the stored cookies against the server.
func (a *App) requireLogin(ctx context.Context) error {
	if err := a.Chat.Bootstrap(ctx); err != nil {
		return err
	}
	if a.Chat.State().View != state.ViewChat {
		return ErrNotLoggedIn
	}
	return nil
}

// env is the slash-command environment for one-shot and REPL use.
func (a *App) env() *commands.Env {
	return &commands.Env{
		Chat:         a.Chat,
		Out:          commands.PrinterFunc(func(text string) { fmt.Fprintln(a.Out, text) }),
		ExportFormat: a.Config.Export.Format,
		ExportDir:    a.Config.Export.OutputDir,
		Now:          a.Now,
	}
}

// writeJSON prints data in the JSON envelope.
func (a *App) writeJSON(cmd Command, data any) error {
	return NewJSONResponse(cmd.String(), data).Write(a.Out)
}

// confirmPrompt asks on Out and reads y/n from In.
func (a *App) confirmPrompt(question string) (bool, error) {
	if f, ok := a.In.(*os.File); !ok || f != os.Stdin || !IsTTY() {
		return false, &TTYRequiredError{Operation: "confirm; pass --confirm"}
	}
	answer, err := readLine(a.in, a.Out, question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch answer {
	case "y", "Y", "yes", "YES", "Yes":
		return true, nil
	}
	return false, nil
}
