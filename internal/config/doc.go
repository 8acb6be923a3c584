// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nexuschat.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEXUSCHAT_*)
//   - ~/.nexuschat/config.toml
//   - Built-in defaults
//
// The config directory can be relocated with NEXUSCHAT_HOME.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.NewClient(cfg.Server.BaseURL)
//
// The process-wide instance is available through Global(); Watch reports
// edits to the config file so the TUI can re-theme without restarting.
package config
