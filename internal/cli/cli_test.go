// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/state"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"export", "--format", "md"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "md", p.Flag("format"))
				assert.Equal(t, 1, p.PositionalCount())
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "--output=/tmp/out"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "/tmp/out", p.Flag("output", "o"))
			},
		},
		{
			name:    "short alias",
			args:    []string{"upload", "-s", "2", "a.txt"},
			wantSub: "upload",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "2", p.Flag("session", "s"))
				assert.Equal(t, []string{"upload", "a.txt"}, p.PositionalFrom(0))
			},
		},
		{
			name:    "declared bool does not take a value",
			args:    []string{"delete", "--confirm", "3"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("confirm"))
				assert.Equal(t, "3", p.Positional(1))
			},
		},
		{
			name:    "trailing flag is boolean",
			args:    []string{"list", "--all"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("all"))
				assert.True(t, p.HasFlag("all"))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"rename", "2", "--", "--not-a-flag"},
			wantSub: "rename",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "--not-a-flag", p.JoinFrom(2))
				assert.False(t, p.HasFlag("not-a-flag"))
			},
		},
		{
			name:    "no arguments",
			args:    nil,
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "", p.Positional(0))
				assert.Nil(t, p.PositionalFrom(1))
				assert.Equal(t, "", p.JoinFrom(0))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, "confirm")
			assert.Equal(t, tt.wantSub, p.Subcommand())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_UndeclaredBoolConsumesValue(t *testing.T) {
	p := NewArgParser([]string{"delete", "--confirm", "3"})
	assert.Equal(t, "3", p.Flag("confirm"))
	assert.Equal(t, "", p.Positional(1))
}

func TestArgParser_FlagInt(t *testing.T) {
	p := NewArgParser([]string{"--limit", "5", "--zero", "0", "--word", "abc"})

	n, err := p.FlagInt("limit", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = p.FlagInt("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = p.FlagInt("zero", 1)
	assert.ErrorIs(t, err, ErrUsage)
	_, err = p.FlagInt("word", 1)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "--word")
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	p := NewArgParser([]string{"--format", "html", "--empty="})
	assert.Equal(t, "html", p.FlagOrDefault("format", "json"))
	assert.Equal(t, "json", p.FlagOrDefault("empty", "json"))
	assert.Equal(t, "md", p.FlagOrDefault("nope", "md"))
}

// =============================================================================
// PARSE TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
	}{
		{name: "no arguments starts the tui", argv: nil, wantCmd: CmdTUI},
		{name: "repl alias", argv: []string{"repl"}, wantCmd: CmdChat},
		{name: "whoami alias", argv: []string{"whoami"}, wantCmd: CmdProfile},
		{name: "register alias", argv: []string{"register", "ada"}, wantCmd: CmdSignup},
		{name: "find alias", argv: []string{"find", "cats"}, wantCmd: CmdSearch},
		{
			name:    "ls lists sessions",
			argv:    []string{"ls"},
			wantCmd: CmdSessions,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "list", a.Params.Subcommand())
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"sessions", "delete", "2", "--json", "-y", "--server", "http://chat.local:5000"},
			wantCmd: CmdSessions,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, "http://chat.local:5000", a.Server)
				assert.Equal(t, "delete", a.Params.Subcommand())
				assert.Equal(t, "2", a.Params.Positional(1))
				assert.True(t, a.Params.BoolFlag("confirm", "yes", "y"))
			},
		},
		{
			name:    "equals form of global flags",
			argv:    []string{"--theme=light", "--config=/tmp/c.toml", "chat", "-q"},
			wantCmd: CmdChat,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "light", a.Theme)
				assert.Equal(t, "/tmp/c.toml", a.ConfigFile)
				assert.True(t, a.Quiet)
			},
		},
		{
			name:    "password-stdin keeps the username",
			argv:    []string{"login", "--password-stdin", "ada"},
			wantCmd: CmdLogin,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.Params.BoolFlag("password-stdin"))
				assert.Equal(t, "ada", a.Params.Positional(0))
			},
		},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "bare help flag", argv: []string{"-h"}, wantCmd: CmdHelp},
		{name: "help on a command", argv: []string{"sessions", "--help"}, wantCmd: CmdHelp},
		{
			name:    "flags before the command default to the tui",
			argv:    []string{"--no-color", "-v"},
			wantCmd: CmdTUI,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.NoColor)
				assert.True(t, a.Verbose)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
			require.NotNil(t, args.Params)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, _, err := Parse([]string{"bogus"})
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "bogus")

	_, _, err = Parse([]string{"sessions", "--server"})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestCommand_Properties(t *testing.T) {
	assert.Equal(t, "sessions", CmdSessions.String())
	assert.Equal(t, "Command(99)", Command(99).String())

	assert.True(t, CmdLogin.NeedsServer())
	assert.False(t, CmdConfig.NeedsServer())
	assert.False(t, CmdVersion.NeedsServer())

	assert.True(t, CmdChat.Interactive())
	assert.True(t, CmdTUI.Interactive())
	assert.False(t, CmdSearch.Interactive())
}

// =============================================================================
// ERROR TESTS (errors.go, output.go)
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"slash command usage", fmt.Errorf("x: %w", commands.ErrUsage), ExitUsageError},
		{"invalid request", fmt.Errorf("%w: title", api.ErrInvalidRequest), ExitUsageError},
		{"tty required", &TTYRequiredError{Operation: "confirm"}, ExitUsageError},
		{"rejected file", fmt.Errorf("a.exe: %w", chat.ErrFileType), ExitUsageError},
		{"config", &ConfigError{Path: "/x", Err: errors.New("broken")}, ExitConfigError},
		{"not logged in", ErrNotLoggedIn, ExitAuthError},
		{"unauthorized", &api.APIError{Status: http.StatusUnauthorized, Message: "Authentication required"}, ExitAuthError},
		{"transport", fmt.Errorf("%w: refused", api.ErrTransport), ExitNetworkError},
		{"not found", &api.APIError{Status: http.StatusNotFound, Message: "Session not found"}, ExitNotFoundError},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"interrupted", fmt.Errorf("send: %w", context.Canceled), ExitInterrupted},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "login", fmt.Errorf("%w: connection refused", api.ErrTransport), false)
	assert.Contains(t, buf.String(), "[ERROR]")
	assert.Contains(t, buf.String(), "connection refused")
	assert.Contains(t, buf.String(), "server.base_url")

	buf.Reset()
	DisplayError(&buf, "profile", ErrNotLoggedIn, true)
	resp := decodeResponse(t, buf.Bytes())
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotLoggedIn.Error(), *resp.Error)
	assert.Equal(t, "auth_error", resp.ErrorType)
	assert.Equal(t, "profile", resp.Command)

	buf.Reset()
	DisplayError(&buf, "x", nil, false)
	assert.Empty(t, buf.String())
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONResponse("search", map[string]int{"n": 2}).Write(&buf))

	resp := decodeResponse(t, buf.Bytes())
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"n":2}`, string(resp.Data))
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

// =============================================================================
// COMMAND TESTS (app.go, account.go, sessions.go, config_cmd.go)
// =============================================================================

// chatServer is a minimal stand-in for the chat backend.
type chatServer struct {
	mu       sync.Mutex
	loggedIn bool
	sessions []api.Session
	messages map[int64][]api.Message
	nextID   int64
	deleted  []int64
	sent     []string
	uploads  int
}

func (s *chatServer) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			ok := s.loggedIn
			s.mu.Unlock()
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			next(w, r)
		}
	}
	pathID := func(r *http.Request) int64 {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		return id
	}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Username != "ada" || body.Password != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
			return
		}
		s.mu.Lock()
		s.loggedIn = true
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.loggedIn = false
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	})
	mux.HandleFunc("GET /api/profile", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"username": "ada", "email": "ada@example.com", "joined_date": "2024-01-02", "total_chats": len(s.list())})
	}))
	mux.HandleFunc("GET /api/sessions", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": s.list()})
	}))
	mux.HandleFunc("POST /api/new_session", authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Title string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Title == "" {
			body.Title = api.DefaultSessionTitle
		}
		s.mu.Lock()
		s.nextID++
		id := 100 + s.nextID
		s.sessions = append([]api.Session{{ID: id, Title: body.Title, UpdatedAt: api.Timestamp{Time: time.Now()}}}, s.sessions...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "title": body.Title, "message": "created"})
	}))
	mux.HandleFunc("GET /api/session/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"session":  map[string]any{"id": id, "title": "x"},
			"messages": s.messagesOf(id),
		})
	}))
	mux.HandleFunc("GET /api/messages/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"messages": s.messagesOf(pathID(r))})
	}))
	mux.HandleFunc("PUT /api/session/{id}/update-name", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := pathID(r)
		s.mu.Lock()
		for i := range s.sessions {
			if s.sessions[i].ID == id && s.sessions[i].Title == api.DefaultSessionTitle {
				s.sessions[i].Title = body["session_name"]
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session name updated"})
	}))
	mux.HandleFunc("DELETE /api/delete_session/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		s.mu.Lock()
		s.deleted = append(s.deleted, id)
		kept := s.sessions[:0]
		for _, sess := range s.sessions {
			if sess.ID != id {
				kept = append(kept, sess)
			}
		}
		s.sessions = kept
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}))
	mux.HandleFunc("GET /api/chats/search", authed(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("q"), "cat") {
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{
			{"session_id": 11, "session_name": "Cats", "content": "cats are great", "sender": "user", "timestamp": "2025-01-01 10:00:00"},
		}})
	}))
	mux.HandleFunc("POST /api/message", authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID int64  `json:"session_id"`
			Content   string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.sent = append(s.sent, body.Content)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"user_message": body.Content, "ai_message": "Hi ada", "session_id": body.SessionID})
	}))
	mux.HandleFunc("POST /api/upload", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		s.mu.Lock()
		s.uploads++
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"message": "File uploaded", "file_id": 9, "filename": "notes.txt", "file_type": "text"})
	}))
	mux.HandleFunc("GET /api/chats/export", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"export_date":    "2025-01-01 10:00:00",
			"user_id":        7,
			"total_sessions": 1,
			"sessions": []map[string]any{{
				"session_id":   11,
				"session_name": "Newest",
				"messages":     []map[string]any{{"sender": "user", "content": "hello"}},
			}},
		})
	}))
	return mux
}

func (s *chatServer) list() []api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Session(nil), s.sessions...)
}

func (s *chatServer) snapshot() (loggedIn bool, deleted []int64, sent []string, uploads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn, append([]int64(nil), s.deleted...), append([]string(nil), s.sent...), s.uploads
}

func (s *chatServer) messagesOf(id int64) []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msgs := s.messages[id]; msgs != nil {
		return msgs
	}
	return []api.Message{}
}

// testApp wires an App to srv with captured output.
type testApp struct {
	*App
	out, err *bytes.Buffer
}

func newTestApp(t *testing.T, srv *chatServer, stdin string) *testApp {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.SetDefaults()
	cfg.Server.BaseURL = ts.URL
	cfg.Export.OutputDir = t.TempDir()
	cfg.Storage.HistoryFile = filepath.Join(t.TempDir(), "chat_history")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app := &App{
		Chat:   chat.New(api.NewClient(ts.URL), state.NewStore(state.Initial()), nil, chat.Options{}),
		Config: cfg,
		In:     strings.NewReader(stdin),
		Out:    out,
		Err:    errOut,
		ReadPassword: func(string) (string, error) {
			return "", errors.New("no terminal in tests")
		},
		Confirm: func(string) (bool, error) {
			return false, errors.New("unexpected confirmation")
		},
	}
	return &testApp{App: app, out: out, err: errOut}
}

// run parses argv like main does and runs the command.
func (a *testApp) run(t *testing.T, argv ...string) error {
	t.Helper()
	cmd, args, err := Parse(argv)
	require.NoError(t, err)
	return a.Run(context.Background(), cmd, args)
}

type decodedResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	ErrorType string          `json:"error_type"`
	Timestamp string          `json:"timestamp"`
	Command   string          `json:"command"`
}

func decodeResponse(t *testing.T, b []byte) decodedResponse {
	t.Helper()
	var resp decodedResponse
	require.NoError(t, json.Unmarshal(b, &resp), string(b))
	return resp
}

func twoSessions() *chatServer {
	now := time.Now()
	return &chatServer{
		loggedIn: true,
		sessions: []api.Session{
			{ID: 11, Title: "Newest", MessageCount: 2, UpdatedAt: api.Timestamp{Time: now}},
			{ID: 22, Title: "Old", MessageCount: 4, UpdatedAt: api.Timestamp{Time: now.AddDate(0, -2, 0)}},
		},
		messages: map[int64][]api.Message{
			22: {
				{ID: 1, Sender: api.SenderUser, Content: "what is 2+2?"},
				{ID: 2, Sender: api.SenderAssistant, Content: "It is 4."},
			},
		},
	}
}

func TestRun_NoServerConnection(t *testing.T) {
	app := &App{Out: io.Discard, Err: io.Discard}
	err := app.Run(context.Background(), CmdProfile, Args{})
	assert.Error(t, err)
}

func TestRun_VersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	app := &App{Out: &out, Err: io.Discard}

	require.NoError(t, app.Run(context.Background(), CmdVersion, Args{}))
	assert.Contains(t, out.String(), "nexuschat version "+Version)

	out.Reset()
	require.NoError(t, app.Run(context.Background(), CmdHelp, Args{}))
	assert.Contains(t, out.String(), "nexuschat sessions delete N")
	assert.Contains(t, out.String(), "--password-stdin")
}

func TestRun_Config(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.SetDefaults()
	app := &App{Config: cfg, ConfigPath: "/etc/nexuschat/config.toml", Out: &out, Err: io.Discard}

	require.NoError(t, app.Run(context.Background(), CmdConfig, Args{Params: NewArgParser([]string{"path"})}))
	assert.Equal(t, "/etc/nexuschat/config.toml\n", out.String())

	out.Reset()
	require.NoError(t, app.Run(context.Background(), CmdConfig, Args{}))
	assert.Contains(t, out.String(), "[server]")
	assert.Contains(t, out.String(), cfg.Server.BaseURL)

	out.Reset()
	require.NoError(t, app.Run(context.Background(), CmdConfig, Args{JSON: true}))
	resp := decodeResponse(t, out.Bytes())
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), `"base_url"`)

	err := app.Run(context.Background(), CmdConfig, Args{Params: NewArgParser([]string{"edit"})})
	assert.ErrorIs(t, err, ErrUsage)
}

func TestLogin_PasswordStdin(t *testing.T) {
	srv := &chatServer{}
	app := newTestApp(t, srv, "secret123\n")

	require.NoError(t, app.run(t, "login", "ada", "--password-stdin"))
	assert.Contains(t, app.out.String(), "Logged in as ada")
	assert.Equal(t, state.ViewChat, app.Chat.State().View)
}

func TestLogin_PromptsAndRejects(t *testing.T) {
	srv := &chatServer{}
	app := newTestApp(t, srv, "ada\n")
	var prompts []string
	app.ReadPassword = func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "wrong", nil
	}

	err := app.run(t, "login")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, ExitCode(err))
	assert.Equal(t, []string{"Password: "}, prompts)
	assert.Contains(t, app.err.String(), "Username: ")
}

func TestLogin_JSON(t *testing.T) {
	srv := twoSessions()
	srv.loggedIn = false
	app := newTestApp(t, srv, "secret123\n")

	require.NoError(t, app.run(t, "login", "ada", "--password-stdin", "--json"))
	resp := decodeResponse(t, app.out.Bytes())
	assert.True(t, resp.Success)
	assert.Equal(t, "login", resp.Command)
	assert.JSONEq(t, `{"username":"ada","email":"ada@example.com","sessions":2}`, string(resp.Data))
}

func TestSignup_PasswordMismatch(t *testing.T) {
	app := newTestApp(t, &chatServer{}, "")
	answers := []string{"secret123", "secret124"}
	app.ReadPassword = func(string) (string, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}

	err := app.run(t, "signup", "ada", "--email", "ada@example.com")
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "do not match")
}

func TestLogout(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")

	require.NoError(t, app.run(t, "logout"))
	assert.Contains(t, app.out.String(), "Logged out")
	loggedIn, _, _, _ := srv.snapshot()
	assert.False(t, loggedIn)

	err := app.run(t, "profile")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestProfile(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")

	require.NoError(t, app.run(t, "profile"))
	assert.Contains(t, app.out.String(), "ada <ada@example.com>")
	assert.Contains(t, app.out.String(), "Conversations: 2")
}

func TestSessions_NotLoggedIn(t *testing.T) {
	app := newTestApp(t, &chatServer{}, "")

	err := app.run(t, "sessions")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSessions_List(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")

	require.NoError(t, app.run(t, "ls"))
	out := app.out.String()
	assert.Contains(t, out, "1. Newest")
	assert.Contains(t, out, "2. Old")
	assert.Less(t, strings.Index(out, "Newest"), strings.Index(out, "Old"))
}

func TestSessions_ListJSON(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")

	require.NoError(t, app.run(t, "sessions", "--json"))
	resp := decodeResponse(t, app.out.Bytes())
	require.True(t, resp.Success)

	var got []sessionJSON
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, int64(11), got[0].ID)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, int64(22), got[1].ID)
	assert.NotEmpty(t, got[1].Bucket)
}

func TestSessions_Show(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")

	require.NoError(t, app.run(t, "sessions", "show", "2", "--plain"))
	out := app.out.String()
	assert.Contains(t, out, "Old (#22)")
	assert.Contains(t, out, "what is 2+2?")
	assert.Contains(t, out, "It is 4.")
	// Showing does not change the active conversation.
	assert.Zero(t, app.Chat.State().ActiveID)

	app.out.Reset()
	require.NoError(t, app.run(t, "sessions", "show", "#22", "--json"))
	resp := decodeResponse(t, app.out.Bytes())
	assert.Contains(t, string(resp.Data), `"session_id": 22`)
	assert.Contains(t, string(resp.Data), "It is 4.")

	assert.ErrorIs(t, app.run(t, "sessions", "show"), ErrUsage)
	assert.ErrorIs(t, app.run(t, "sessions", "show", "9"), ErrUsage)
}

func TestSessions_NewAndRename(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")

	require.NoError(t, app.run(t, "sessions", "new"))
	assert.Contains(t, app.out.String(), "Created conversation #101")
	assert.Equal(t, int64(101), app.Chat.State().ActiveID)

	app.out.Reset()
	require.NoError(t, app.run(t, "sessions", "rename", "#101", "Trip", "plans"))
	assert.Contains(t, app.out.String(), `Renamed #101 to "Trip plans"`)
	assert.Equal(t, "Trip plans", srv.list()[0].Title)

	// The server keeps titles that are no longer "New Chat".
	err := app.run(t, "sessions", "rename", "#11", "Other")
	assert.ErrorIs(t, err, chat.ErrRenameIgnored)

	assert.ErrorIs(t, app.run(t, "sessions", "rename", "1"), ErrUsage)
}

func TestSessions_Delete(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")

	require.NoError(t, app.run(t, "sessions", "delete", "2", "--confirm"))
	assert.Contains(t, app.out.String(), "Deleted conversation #22")
	_, deleted, _, _ := srv.snapshot()
	assert.Equal(t, []int64{22}, deleted)
	assert.Len(t, app.Chat.State().Sessions, 1)
}

func TestSessions_DeleteAsks(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")

	var asked string
	app.Confirm = func(q string) (bool, error) {
		asked = q
		return false, nil
	}
	err := app.run(t, "sessions", "rm", "1")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "Delete conversation #11?", asked)
	_, deleted, _, _ := srv.snapshot()
	assert.Empty(t, deleted)

	app.Confirm = func(string) (bool, error) { return true, nil }
	require.NoError(t, app.run(t, "sessions", "rm", "1"))
	_, deleted, _, _ = srv.snapshot()
	assert.Equal(t, []int64{11}, deleted)

	// JSON output never prompts.
	err = app.run(t, "sessions", "delete", "1", "--json")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestSearch(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")

	require.NoError(t, app.run(t, "search", "cats"))
	assert.Contains(t, app.out.String(), `1 results for "cats"`)
	assert.Contains(t, app.out.String(), "Cats")

	app.out.Reset()
	require.NoError(t, app.run(t, "find", "dogs", "--json"))
	resp := decodeResponse(t, app.out.Bytes())
	assert.JSONEq(t, `{"query":"dogs","results":[]}`, string(resp.Data))

	assert.ErrorIs(t, app.run(t, "search"), ErrUsage)
}

func TestUpload_PartialFailure(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")

	dir := t.TempDir()
	good := filepath.Join(dir, "notes.txt")
	bad := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(good, []byte("plain text notes\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("MZ"), 0o644))

	err := app.run(t, "upload", "--session", "2", good, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrFileType)
	assert.Equal(t, ExitUsageError, ExitCode(err))

	out := app.out.String()
	assert.Contains(t, out, "notes.txt uploaded to #22")
	assert.Contains(t, out, "tool.exe")
	assert.Contains(t, out, "1 of 2 files uploaded")
	_, _, _, uploads := srv.snapshot()
	assert.Equal(t, 1, uploads)

	assert.ErrorIs(t, app.run(t, "upload"), ErrUsage)
}

func TestUpload_JSON(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("plain text notes\n"), 0o644))

	require.NoError(t, app.run(t, "upload", "-s", "#11", file, "--json"))
	resp := decodeResponse(t, app.out.Bytes())

	var got uploadJSON
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, int64(11), got.SessionID)
	require.Len(t, got.Uploaded, 1)
	assert.Equal(t, "notes.txt", got.Uploaded[0].Filename)
	assert.Empty(t, got.Failed)
}

func TestExport(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")
	dir := t.TempDir()

	require.NoError(t, app.run(t, "export", "--format", "md", "-o", dir, "-q"))
	path := strings.TrimSpace(app.out.String())
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".md", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Newest")

	app.out.Reset()
	require.NoError(t, app.run(t, "export", "json", "--json"))
	resp := decodeResponse(t, app.out.Bytes())
	assert.Contains(t, string(resp.Data), app.Config.Export.OutputDir)

	err = app.run(t, "export", "--format", "pdf")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

// =============================================================================
// REPL TESTS (repl.go)
// =============================================================================

// scriptedEditor replays fixed input lines, then reports EOF.
type scriptedEditor struct {
	lines   []string
	history []string
	prompts int
	closed  bool
}

func (e *scriptedEditor) Prompt(string) (string, error) {
	e.prompts++
	if len(e.lines) == 0 {
		return "", io.EOF
	}
	line := e.lines[0]
	e.lines = e.lines[1:]
	return line, nil
}

func (e *scriptedEditor) AppendHistory(item string) { e.history = append(e.history, item) }

func (e *scriptedEditor) Close() error {
	e.closed = true
	return nil
}

func withEditor(app *testApp, lines ...string) *scriptedEditor {
	ed := &scriptedEditor{lines: lines}
	app.newEditor = func(complete func(string) []string) (lineEditor, error) {
		return ed, nil
	}
	return ed
}

func TestREPL_SendsAndRunsCommands(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")
	ed := withEditor(app, "  hello there  ", "", "/bogus", "/quit", "never read")

	require.NoError(t, app.run(t, "chat"))

	assert.True(t, ed.closed)
	assert.Equal(t, []string{"hello there", "/bogus", "/quit"}, ed.history)
	_, _, sent, _ := srv.snapshot()
	assert.Equal(t, []string{"hello there"}, sent)

	out := app.out.String()
	assert.Contains(t, out, "Signed in as ada, 2 conversations")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "Hi ada")
	assert.Contains(t, out, "Bye.")
	assert.Contains(t, app.err.String(), "/bogus")

	// The first message named the new conversation.
	assert.Equal(t, int64(101), app.Chat.State().ActiveID)
	assert.Equal(t, "hello there", srv.list()[0].Title)
}

func TestREPL_ExitWordAndSession(t *testing.T) {
	app := newTestApp(t, twoSessions(), "")
	ed := withEditor(app, "exit")

	require.NoError(t, app.run(t, "chat", "--session", "2", "-q"))
	assert.Equal(t, 1, ed.prompts)
	assert.Equal(t, int64(22), app.Chat.State().ActiveID)
	// The loaded thread is replayed into the transcript.
	assert.Contains(t, app.out.String(), "It is 4.")
	assert.NotContains(t, app.out.String(), "Bye.")
}

func TestREPL_LogsInFirst(t *testing.T) {
	srv := twoSessions()
	srv.loggedIn = false
	app := newTestApp(t, srv, "ada\n")
	app.ReadPassword = func(string) (string, error) { return "secret123", nil }
	withEditor(app)

	require.NoError(t, app.run(t, "chat"))
	assert.Contains(t, app.err.String(), "Not logged in.")
	assert.Contains(t, app.out.String(), "Signed in as ada")
}

func TestREPL_LogoutEndsSession(t *testing.T) {
	srv := twoSessions()
	app := newTestApp(t, srv, "")
	ed := withEditor(app, "/logout", "hello")

	require.NoError(t, app.run(t, "chat"))
	_, _, sent, _ := srv.snapshot()
	assert.Empty(t, sent)
	assert.Equal(t, []string{"hello"}, ed.lines)
}
