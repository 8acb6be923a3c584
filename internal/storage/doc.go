// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the client's login between runs.
//
// CookieJar is an http.CookieJar that keeps the matching rules of
// net/http/cookiejar and mirrors every stored cookie into a SQLite
// database (default ~/.nexuschat/cookies.db). Reopening the database restores
// the cookies, so `nexuschat login` followed by `nexuschat sessions` works
// across processes.
//
// # Usage
//
//	jar, err := storage.OpenCookieJar(cfg.Storage.CookieDB, logger)
//	if err != nil {
//	    return err
//	}
//	defer jar.Close()
//	client := api.NewClient(cfg.Server.BaseURL).WithJar(jar)
package storage
