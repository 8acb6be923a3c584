// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// CookieJar is an http.CookieJar backed by SQLite. It is safe for concurrent use.
type CookieJar struct {
	mu     sync.Mutex
	db     *sql.DB
	jar    *cookiejar.Jar
	logger *zap.Logger
	now    func() time.Time
}

// OpenCookieJar opens (creating if needed) the cookie database at path and
// loads every unexpired cookie into memory.
func OpenCookieJar(path string, logger *zap.Logger) (*CookieJar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cookie directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cookie schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to write schema version: %w", err)
	}

	// The database file holds live credentials.
	_ = os.Chmod(path, 0600)

	j := &CookieJar{db: db, logger: logger, now: time.Now}
	if err := j.reload(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar. Cookies are stored in memory first;
// persistence failures are logged and do not affect the current process.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	host := u.Hostname()
	now := j.now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			if _, err := j.db.Exec(`DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, c.Name, path); err != nil {
				j.logger.Warn("cookie delete failed", zap.String("host", host), zap.String("name", c.Name), zap.Error(err))
			}
			continue
		}

		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		var expiresUnix int64
		if !expires.IsZero() {
			expiresUnix = expires.Unix()
		}

		_, err := j.db.Exec(`
			INSERT INTO cookies (host, name, path, value, domain, expires, secure, http_only, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(host, name, path) DO UPDATE SET
				value = excluded.value,
				domain = excluded.domain,
				expires = excluded.expires,
				secure = excluded.secure,
				http_only = excluded.http_only,
				updated_at = excluded.updated_at`,
			host, c.Name, path, c.Value, c.Domain, expiresUnix, c.Secure, c.HttpOnly, now.Unix(),
		)
		if err != nil {
			j.logger.Warn("cookie persist failed", zap.String("host", host), zap.String("name", c.Name), zap.Error(err))
		}
	}
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear forgets every cookie received from u's host, in memory and on disk.
func (j *CookieJar) Clear(u *url.URL) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.Exec(`DELETE FROM cookies WHERE host = ?`, u.Hostname()); err != nil {
		return fmt.Errorf("clear cookies for %s: %w", u.Hostname(), err)
	}
	return j.reload()
}

// Count returns the number of persisted cookies.
func (j *CookieJar) Count() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM cookies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cookies: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (j *CookieJar) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}

// reload rebuilds the in-memory jar from the database, dropping expired rows.
// Callers hold j.mu (or have exclusive access during Open).
func (j *CookieJar) reload() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}

	now := j.now().Unix()
	if _, err := j.db.Exec(`DELETE FROM cookies WHERE expires != 0 AND expires <= ?`, now); err != nil {
		return fmt.Errorf("purge expired cookies: %w", err)
	}

	rows, err := j.db.Query(`SELECT host, name, path, value, domain, expires, secure, http_only FROM cookies`)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			host, name, path, value, domain string
			expires                         int64
			secure, httpOnly                bool
		)
		if err := rows.Scan(&host, &name, &path, &value, &domain, &expires, &secure, &httpOnly); err != nil {
			return fmt.Errorf("scan cookie: %w", err)
		}

		c := &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     path,
			Domain:   domain,
			Secure:   secure,
			HttpOnly: httpOnly,
		}
		if expires != 0 {
			c.Expires = time.Unix(expires, 0)
		}

		scheme := "http"
		if secure {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: path}, []*http.Cookie{c})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}

	j.jar = jar
	return nil
}

// ClearFor is a helper for callers holding a base URL string.
func (j *CookieJar) ClearFor(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	return j.Clear(u)
}
