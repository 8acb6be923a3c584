// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJar(t *testing.T, path string) *CookieJar {
	t.Helper()
	jar, err := OpenCookieJar(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jar.Close() })
	return jar
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestCookieJar_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.db")
	u := mustURL(t, "http://127.0.0.1:5000/api/auth/login")

	jar, err := OpenCookieJar(path, nil)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{
		Name: "session", Value: "abc", Path: "/", HttpOnly: true,
		Expires: time.Now().Add(24 * time.Hour),
	}})
	require.NoError(t, jar.Close())

	reopened := openTestJar(t, path)
	cookies := reopened.Cookies(mustURL(t, "http://127.0.0.1:5000/api/sessions"))
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestCookieJar_SessionCookiesPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.db")
	u := mustURL(t, "http://localhost:5000/")

	jar, err := OpenCookieJar(path, nil)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc"}})
	require.NoError(t, jar.Close())

	reopened := openTestJar(t, path)
	assert.Len(t, reopened.Cookies(u), 1)
}

func TestCookieJar_DeletedCookieIsRemoved(t *testing.T) {
	jar := openTestJar(t, filepath.Join(t.TempDir(), "cookies.db"))
	u := mustURL(t, "http://127.0.0.1:5000/")

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	n, err := jar.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "", Path: "/", MaxAge: -1}})
	assert.Empty(t, jar.Cookies(u))
	n, err = jar.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCookieJar_Clear(t *testing.T) {
	jar := openTestJar(t, filepath.Join(t.TempDir(), "cookies.db"))
	a := mustURL(t, "http://chat.example.com/")
	b := mustURL(t, "http://other.example.org/")

	jar.SetCookies(a, []*http.Cookie{{Name: "session", Value: "a"}})
	jar.SetCookies(b, []*http.Cookie{{Name: "session", Value: "b"}})

	require.NoError(t, jar.Clear(a))
	assert.Empty(t, jar.Cookies(a))
	require.Len(t, jar.Cookies(b), 1)
	assert.Equal(t, "b", jar.Cookies(b)[0].Value)

	require.NoError(t, jar.ClearFor("http://other.example.org:8080"))
	assert.Empty(t, jar.Cookies(b))
}

func TestCookieJar_ExpiredRowsPurged(t *testing.T) {
	jar := openTestJar(t, filepath.Join(t.TempDir(), "cookies.db"))
	u := mustURL(t, "http://127.0.0.1/")

	jar.SetCookies(u, []*http.Cookie{{Name: "short", Value: "x", MaxAge: 60}})
	n, err := jar.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jar.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.NoError(t, jar.ClearFor("http://unrelated.test"))

	n, err = jar.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCookieJar_WithHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "token-1", Path: "/"})
		case "/me":
			if c, err := r.Cookie("session"); err == nil && c.Value == "token-1" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "cookies.db")
	jar, err := OpenCookieJar(path, nil)
	require.NoError(t, err)

	client := &http.Client{Jar: jar}
	resp, err := client.Get(server.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.NoError(t, jar.Close())

	// a new process: fresh jar over the same database
	client = &http.Client{Jar: openTestJar(t, path)}
	resp, err = client.Get(server.URL + "/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
