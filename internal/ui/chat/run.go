// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/config"
)

// Run starts the full-screen UI and blocks until the user quits or ctx is
// done. When configPath is set, edits to the file are applied live.
func Run(ctx context.Context, opts Options, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts.Context = ctx
	m := New(opts)
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, config.DefaultWatchDebounce, func(cfg *config.Config, err error) {
				p.Send(ConfigReloadedMsg{Config: cfg, Err: err})
			})
			if err != nil {
				m.logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
