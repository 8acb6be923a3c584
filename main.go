// nexuschat - A terminal client for a NexusChat server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/cli"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/logging"
	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code so deferred cleanup happens before os.Exit.
func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, "", err, false)
		return cli.ExitCode(err)
	}
	if args.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	errOut := io.Writer(os.Stderr)
	if args.JSON {
		errOut = os.Stdout
	}

	cfg, cfgPath, err := loadConfig(args)
	if err != nil {
		cli.DisplayError(errOut, cmd.String(), err, args.JSON)
		return cli.ExitCode(err)
	}

	logger := logging.MustNew(logging.Options{
		File:       cfg.Logging.File,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Console:    args.Verbose && !cmd.Interactive(),
	})
	defer logger.Sync()
	logger.Info("starting", zap.String("version", Version), zap.Stringer("command", cmd), zap.String("server", cfg.Server.BaseURL))

	// The chat REPL handles Ctrl+C itself: it cancels the request in flight.
	signals := []os.Signal{syscall.SIGTERM}
	if cmd != cli.CmdChat {
		signals = append(signals, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	app := &cli.App{Config: cfg, ConfigPath: cfgPath, Logger: logger}
	if cmd.NeedsServer() {
		jar, err := storage.OpenCookieJar(cfg.Storage.CookieDB, logger)
		if err != nil {
			cli.DisplayError(errOut, cmd.String(), err, args.JSON)
			return cli.ExitGeneralError
		}
		defer jar.Close()

		client := api.NewClient(cfg.Server.BaseURL).
			WithJar(jar).
			WithLogger(logger).
			WithUserAgent(cfg.Server.UserAgent)

		opts := chat.OptionsFromConfig(cfg)
		opts.OnLogout = func() error { return jar.ClearFor(cfg.Server.BaseURL) }
		app.Chat = chat.New(client, state.NewStore(state.Initial()), logger, opts)
	}

	err = app.Run(ctx, cmd, args)
	if err != nil {
		logger.Info("command failed", zap.Stringer("command", cmd), zap.Error(err))
		if !errors.Is(err, cli.ErrCancelled) || args.JSON {
			cli.DisplayError(errOut, cmd.String(), err, args.JSON)
		}
	}
	return cli.ExitCode(err)
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(args cli.Args) (*config.Config, string, error) {
	path := args.ConfigFile
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return nil, "", &cli.ConfigError{Err: err}
		}
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, &cli.ConfigError{Path: path, Err: err}
	}

	if args.Server != "" {
		cfg.Server.BaseURL = strings.TrimSuffix(strings.TrimSpace(args.Server), "/")
	}
	if args.Theme != "" {
		cfg.UI.Theme = strings.ToLower(args.Theme)
	}
	if args.Server != "" || args.Theme != "" {
		if err := cfg.Validate(); err != nil {
			return nil, path, &cli.ConfigError{Err: fmt.Errorf("command-line override: %w", err)}
		}
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}
