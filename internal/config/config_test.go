// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// isolate points ConfigDir at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NEXUSCHAT_HOME", dir)
	for _, k := range []string{
		"NEXUSCHAT_BASE_URL", "NEXUSCHAT_USER_AGENT", "NEXUSCHAT_THEME",
		"NEXUSCHAT_MAX_FILE_SIZE_MB", "NEXUSCHAT_ALLOWED_EXTENSIONS",
		"NEXUSCHAT_EXPORT_FORMAT", "NEXUSCHAT_EXPORT_DIR",
		"NEXUSCHAT_LOG_LEVEL", "NEXUSCHAT_LOG_FILE", "NEXUSCHAT_COOKIE_DB",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}

// TestConfig_ConcurrentReload tests concurrent ReloadGlobal and Global calls.
func TestConfig_ConcurrentReload(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := ReloadGlobal(); err != nil {
				t.Errorf("ReloadGlobal() error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.Server.BaseURL = "http://example.test:9000"
	SetGlobal(c)

	if got := Global().Server.BaseURL; got != "http://example.test:9000" {
		t.Errorf("Global().Server.BaseURL = %q, want SetGlobal value", got)
	}
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Server.BaseURL != "http://127.0.0.1:5000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Upload.MaxFileSizeMB != 16 {
		t.Errorf("MaxFileSizeMB = %d, want 16", cfg.Upload.MaxFileSizeMB)
	}
	if len(cfg.Upload.AllowedExtensions) != 7 {
		t.Errorf("AllowedExtensions = %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.UI.TitleLength != 50 {
		t.Errorf("TitleLength = %d, want 50", cfg.UI.TitleLength)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadFromPath(filepath.Join(dir, "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Storage.CookieDB != filepath.Join(dir, "cookies.db") {
		t.Errorf("CookieDB = %q, want under %s", cfg.Storage.CookieDB, dir)
	}
	if cfg.Logging.File != filepath.Join(dir, "logs", "nexuschat.log") {
		t.Errorf("Logging.File = %q", cfg.Logging.File)
	}
}

func TestConfig_LoadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	data := `
[server]
base_url = "https://chat.example.com/"

[ui]
theme = "Light"

[upload]
allowed_extensions = [".TXT", "pdf"]
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Server.BaseURL != "https://chat.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.Server.BaseURL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("Theme = %q, want light", cfg.UI.Theme)
	}
	if got := cfg.Upload.AllowedExtensions; len(got) != 2 || got[0] != "txt" || got[1] != "pdf" {
		t.Errorf("AllowedExtensions = %v, want [txt pdf]", got)
	}
	// untouched keys keep defaults
	if cfg.Upload.MaxFileSizeMB != 16 {
		t.Errorf("MaxFileSizeMB = %d, want 16", cfg.Upload.MaxFileSizeMB)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("NEXUSCHAT_BASE_URL", "http://10.0.0.2:8080")
	t.Setenv("NEXUSCHAT_ALLOWED_EXTENSIONS", "txt,png")
	t.Setenv("NEXUSCHAT_MAX_FILE_SIZE_MB", "4")

	cfg, err := LoadFromPath(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.2:8080" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Upload.MaxFileSizeMB != 4 {
		t.Errorf("MaxFileSizeMB = %d, want 4", cfg.Upload.MaxFileSizeMB)
	}
	if len(cfg.Upload.AllowedExtensions) != 2 {
		t.Errorf("AllowedExtensions = %v", cfg.Upload.AllowedExtensions)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"valid", func(*Config) {}, "", false},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme", true},
		{"bad url", func(c *Config) { c.Server.BaseURL = "not a url" }, "server.base_url", true},
		{"bad export format", func(c *Config) { c.Export.Format = "pdf" }, "export.format", true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", true},
		{"zero rate", func(c *Config) { c.Search.RatePerSecond = -1 }, "search.rate_per_second", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.UI.Theme = "light"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("config file perm = %o, want owner-only", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("Theme = %q, want light", loaded.UI.Theme)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Upload.AllowedExtensions[0] = "exe"
	if cfg.Upload.AllowedExtensions[0] == "exe" {
		t.Error("Clone shares AllowedExtensions backing array")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(c *Config, err error) {
			if err == nil && c != nil {
				got <- c.UI.Theme
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[ui]\ntheme = \"light\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case theme := <-got:
		if theme != "light" {
			t.Errorf("reloaded theme = %q, want light", theme)
		}
	case <-ctx.Done():
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error: %v", err)
	}
}
