// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jeranaias/nexuschat/internal/api"
)

// fakeAPI is an in-memory API. Hooks override individual calls.
type fakeAPI struct {
	mu sync.Mutex

	profile   *api.Profile
	sessions  []api.Session
	details   map[int64]*api.SessionDetail
	nextID    int64
	nextFile  int64
	calls     []string
	renames   map[int64]string
	uploads   []string
	exportDoc *api.ExportDocument

	onSend    func(ctx context.Context, req api.SendMessageRequest) (*api.SendMessageResponse, error)
	onUpload  func(name string) error
	onGet     func(ctx context.Context, id int64) error
	onProfile func() error
	onSearch  func(q string) ([]api.SearchResult, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		profile:  &api.Profile{Username: "ada", Email: "ada@example.com"},
		details:  make(map[int64]*api.SessionDetail),
		renames:  make(map[int64]string),
		nextID:   100,
		nextFile: 500,
	}
}

func unauthorized() error {
	return &api.APIError{Status: http.StatusUnauthorized, Message: "Authentication required"}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Signup(ctx context.Context, req api.SignupRequest) error {
	f.record("signup")
	return nil
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) error {
	f.record("login")
	if password != "secret123" {
		return unauthorized()
	}
	return nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.record("logout")
	return nil
}

func (f *fakeAPI) Profile(ctx context.Context) (*api.Profile, error) {
	f.record("profile")
	if f.onProfile != nil {
		if err := f.onProfile(); err != nil {
			return nil, err
		}
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, upd api.ProfileUpdate) error {
	f.record("update_profile")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile.Username = upd.Username
	f.profile.Email = upd.Email
	return nil
}

func (f *fakeAPI) ListSessions(ctx context.Context) ([]api.Session, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Session(nil), f.sessions...), nil
}

func (f *fakeAPI) CreateSession(ctx context.Context, title string) (*api.CreatedSession, error) {
	f.record("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.sessions = append([]api.Session{{ID: id, Title: api.DefaultSessionTitle}}, f.sessions...)
	f.details[id] = &api.SessionDetail{}
	return &api.CreatedSession{SessionID: id, Title: api.DefaultSessionTitle}, nil
}

func (f *fakeAPI) GetSession(ctx context.Context, id int64) (*api.SessionDetail, error) {
	f.record("get")
	if f.onGet != nil {
		if err := f.onGet(ctx, id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, &api.APIError{Status: http.StatusNotFound, Message: "Session not found"}
	}
	return d, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, id int64) ([]api.Message, error) {
	d, err := f.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.Messages, nil
}

// RenameSession mirrors the server: only "New Chat" sessions change.
func (f *fakeAPI) RenameSession(ctx context.Context, id int64, name string) error {
	f.record("rename")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id && f.sessions[i].Title == api.DefaultSessionTitle {
			f.sessions[i].Title = name
			f.renames[id] = name
		}
	}
	return nil
}

func (f *fakeAPI) DeleteSession(ctx context.Context, id int64) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.sessions[:0]
	for _, s := range f.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.sessions = kept
	delete(f.details, id)
	return nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.SendMessageResponse, error) {
	f.record("send")
	if f.onSend != nil {
		return f.onSend(ctx, req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == req.SessionID {
			f.sessions[i].MessageCount += 2
		}
	}
	return &api.SendMessageResponse{UserMessage: req.Content, AIMessage: "echo: " + req.Content, SessionID: req.SessionID}, nil
}

func (f *fakeAPI) UploadFile(ctx context.Context, sessionID int64, filename string, r io.Reader) (*api.UploadResult, error) {
	f.record("upload")
	if f.onUpload != nil {
		if err := f.onUpload(filename); err != nil {
			return nil, err
		}
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFile++
	f.uploads = append(f.uploads, filename)
	fileType := api.FileTypeText
	if strings.HasSuffix(filename, ".png") {
		fileType = api.FileTypeImage
	}
	return &api.UploadResult{FileID: f.nextFile, Filename: filename, FileType: fileType}, nil
}

func (f *fakeAPI) AnalyzeImage(ctx context.Context, fileID int64, prompt string) (*api.ImageAnalysis, error) {
	f.record("analyze")
	return &api.ImageAnalysis{Success: true, Analysis: "a cat", PromptUsed: prompt}, nil
}

func (f *fakeAPI) ListAnalyses(ctx context.Context, sessionID int64) ([]api.Analysis, error) {
	f.record("analyses")
	return []api.Analysis{{ID: 1, Summary: "summary"}}, nil
}

func (f *fakeAPI) AskAboutFile(ctx context.Context, sessionID, itemID int64, question string) (*api.FileAnswer, error) {
	f.record("ask")
	return &api.FileAnswer{Question: question, Answer: "forty-two"}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, itemID int64) error {
	f.record("delete_item")
	return nil
}

func (f *fakeAPI) Search(ctx context.Context, query string) ([]api.SearchResult, error) {
	f.record("search")
	if f.onSearch != nil {
		return f.onSearch(query)
	}
	return nil, nil
}

func (f *fakeAPI) Export(ctx context.Context) (*api.ExportDocument, error) {
	f.record("export")
	if f.exportDoc != nil {
		return f.exportDoc, nil
	}
	return &api.ExportDocument{UserID: 1}, nil
}
