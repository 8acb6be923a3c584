// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the cookie database schema version.
	SchemaVersion = 1
)

// Schema is the SQLite schema for persisted cookies.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per cookie, keyed the way a browser keys them.
CREATE TABLE IF NOT EXISTS cookies (
    host TEXT NOT NULL,          -- host the cookie was received from, without port
    name TEXT NOT NULL,
    path TEXT NOT NULL,
    value TEXT NOT NULL,
    domain TEXT NOT NULL DEFAULT '',
    expires INTEGER NOT NULL DEFAULT 0,  -- Unix timestamp, 0 = session cookie
    secure INTEGER NOT NULL DEFAULT 0,
    http_only INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (host, name, path)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_cookies_expires ON cookies(expires);
`
