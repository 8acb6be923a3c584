// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the NexusChat REST API.
//
// Every exported Client method maps to exactly one HTTP request. Credentials
// are carried by cookies held in the client's http.CookieJar; the client never
// sees a token. A failure is returned once: there are no retries, no backoff
// and no timeout other than the caller's context.
//
// # Errors
//
// Failures fall into three classes:
//   - transport failures wrap ErrTransport
//   - non-2xx responses are *APIError, which also matches ErrUnauthorized
//     (401) and ErrNotFound (404) through errors.Is
//   - unreadable bodies wrap ErrEmptyResponse or ErrMalformedResponse
//
// # Usage
//
//	client := api.NewClient(cfg.Server.BaseURL).WithJar(jar).WithLogger(logger)
//	if err := client.Login(ctx, "ada", "correct horse"); err != nil {
//	    return err
//	}
//	sessions, err := client.ListSessions(ctx)
package api
