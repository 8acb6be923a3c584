// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/nexuschat/internal/config"
)

// runConfig handles "config show" and "config path".
func (a *App) runConfig(args Args) error {
	sub := strings.ToLower(args.Params.Subcommand())
	switch sub {
	case "", "show":
		if args.JSON {
			return a.writeJSON(CmdConfig, a.Config)
		}
		fmt.Fprint(a.Out, a.Config.String())
		return nil
	case "path":
		path := a.ConfigPath
		if path == "" {
			var err error
			if path, err = config.ConfigPath(); err != nil {
				return &ConfigError{Err: err}
			}
		}
		if args.JSON {
			return a.writeJSON(CmdConfig, map[string]string{"path": path})
		}
		fmt.Fprintln(a.Out, path)
		return nil
	default:
		return usageErrorf("unknown config subcommand %q (show, path)", sub)
	}
}
