// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/export"
	"github.com/jeranaias/nexuschat/internal/history"
	"github.com/jeranaias/nexuschat/internal/state"
	"github.com/jeranaias/nexuschat/internal/util"
)

// SessionExpiredMessage is shown when a request comes back 401.
const SessionExpiredMessage = "Your session has expired. Please log in again."

// API is the subset of the REST client the controller uses.
type API interface {
	Signup(ctx context.Context, req api.SignupRequest) error
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.Profile, error)
	UpdateProfile(ctx context.Context, upd api.ProfileUpdate) error

	ListSessions(ctx context.Context) ([]api.Session, error)
	CreateSession(ctx context.Context, title string) (*api.CreatedSession, error)
	GetSession(ctx context.Context, id int64) (*api.SessionDetail, error)
	GetMessages(ctx context.Context, id int64) ([]api.Message, error)
	RenameSession(ctx context.Context, id int64, name string) error
	DeleteSession(ctx context.Context, id int64) error
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.SendMessageResponse, error)

	UploadFile(ctx context.Context, sessionID int64, filename string, r io.Reader) (*api.UploadResult, error)
	AnalyzeImage(ctx context.Context, fileID int64, prompt string) (*api.ImageAnalysis, error)
	ListAnalyses(ctx context.Context, sessionID int64) ([]api.Analysis, error)
	AskAboutFile(ctx context.Context, sessionID, itemID int64, question string) (*api.FileAnswer, error)
	DeleteItem(ctx context.Context, itemID int64) error

	Search(ctx context.Context, query string) ([]api.SearchResult, error)
	Export(ctx context.Context) (*api.ExportDocument, error)
}

var _ API = (*api.Client)(nil)

// Options tunes a Controller.
type Options struct {
	// TitleLength is how many characters of the first message name a new conversation.
	TitleLength int
	// MaxFileSize is the upload limit in bytes.
	MaxFileSize int64
	// AllowedExtensions are lowercase extensions without the dot.
	AllowedExtensions []string
	// Now defaults to time.Now.
	Now func() time.Time
	// OnLogout runs after the server logout, e.g. to clear persisted cookies.
	OnLogout func() error
}

// OptionsFromConfig derives controller options from the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TitleLength:       cfg.UI.TitleLength,
		MaxFileSize:       int64(cfg.Upload.MaxFileSizeMB) << 20,
		AllowedExtensions: append([]string(nil), cfg.Upload.AllowedExtensions...),
	}
}

func (o *Options) setDefaults() {
	defaults := OptionsFromConfig(config.Default())
	if o.TitleLength <= 0 {
		o.TitleLength = defaults.TitleLength
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = defaults.MaxFileSize
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = defaults.AllowedExtensions
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Controller runs conversation operations against the API and records the
// outcome in a state.Store. It is safe for concurrent use.
type Controller struct {
	api    API
	store  *state.Store
	logger *zap.Logger
	opts   Options

	// sending guards SendMessage and AskAboutFile.
	sending atomic.Bool

	loadMu     sync.Mutex
	loadSeq    uint64
	cancelLoad context.CancelFunc
}

// New creates a controller. A nil logger discards logs.
func New(client API, store *state.Store, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.setDefaults()
	return &Controller{
		api:    client,
		store:  store,
		logger: logger.Named("chat"),
		opts:   opts,
	}
}

// Store returns the store the controller dispatches to.
func (c *Controller) Store() *state.Store { return c.store }

// State is shorthand for Store().State().
func (c *Controller) State() state.State { return c.store.State() }

// =============================================================================
// ACCOUNT
// =============================================================================

// Bootstrap checks whether the stored credentials are still valid. A 401 is
// not an error: it leaves the client in the login view.
func (c *Controller) Bootstrap(ctx context.Context) error {
	profile, err := c.api.Profile(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			c.logger.Debug("not logged in")
			c.store.Dispatch(state.Unauthorized{})
			return nil
		}
		return c.fail("Could not reach the server", err)
	}
	c.store.Dispatch(state.Authenticated{User: *profile})
	return c.RefreshSessions(ctx)
}

// Login authenticates and loads the user's conversations.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	if err := c.api.Login(ctx, username, password); err != nil {
		c.logger.Info("login failed", zap.String("username", username), zap.Error(err))
		c.store.Dispatch(state.Unauthorized{Message: err.Error()})
		return err
	}
	c.logger.Info("logged in", zap.String("username", username))
	return c.Bootstrap(ctx)
}

// Signup creates an account and logs into it.
func (c *Controller) Signup(ctx context.Context, req api.SignupRequest) error {
	if err := c.api.Signup(ctx, req); err != nil {
		return c.notice("Sign up failed", err)
	}
	return c.Login(ctx, req.Username, req.Password)
}

// Logout ends the session. Local state is cleared even when the server call
// fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.abortLoad()
	if err := c.api.Logout(ctx); err != nil {
		c.logger.Warn("server logout failed", zap.Error(err))
	}
	var hookErr error
	if c.opts.OnLogout != nil {
		if hookErr = c.opts.OnLogout(); hookErr != nil {
			c.logger.Warn("logout cleanup failed", zap.Error(hookErr))
		}
	}
	c.store.Dispatch(state.LoggedOut{})
	return hookErr
}

// Profile fetches the current user's profile.
func (c *Controller) Profile(ctx context.Context) (*api.Profile, error) {
	profile, err := c.api.Profile(ctx)
	if err != nil {
		return nil, c.fail("Could not load profile", err)
	}
	return profile, nil
}

// UpdateProfile saves profile changes and refreshes the signed-in user.
func (c *Controller) UpdateProfile(ctx context.Context, upd api.ProfileUpdate) error {
	if err := c.api.UpdateProfile(ctx, upd); err != nil {
		return c.fail("Could not update profile", err)
	}
	profile, err := c.api.Profile(ctx)
	if err != nil {
		return c.fail("Could not load profile", err)
	}
	c.store.Dispatch(state.Authenticated{User: *profile})
	c.info("Profile updated")
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewConversation clears the active conversation. The session itself is
// created with the first message.
func (c *Controller) NewConversation() {
	c.abortLoad()
	c.store.Dispatch(state.NewConversation{})
}

// SendMessage sends text to the active conversation, creating one first if
// needed. Only one message can be in flight.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.info(ErrBusy.Error())
		return ErrBusy
	}
	defer c.sending.Store(false)

	st := c.store.State()
	sessionID := st.ActiveID
	rename := false
	if sessionID == 0 {
		created, err := c.createSession(ctx, "")
		if err != nil {
			return err
		}
		sessionID = created
		rename = true
	} else if sess, ok := st.ActiveSession(); ok && sess.Title == api.DefaultSessionTitle && sess.MessageCount == 0 {
		rename = true
	}

	req := api.SendMessageRequest{SessionID: sessionID, Content: text}
	if st.ActiveFile != nil && st.ActiveID == sessionID {
		id := st.ActiveFile.ID
		req.FileID = &id
	}

	c.store.Dispatch(state.SendStarted{SessionID: sessionID, Text: text, At: c.opts.Now()})
	resp, err := c.api.SendMessage(ctx, req)
	if err != nil {
		c.logger.Warn("send failed", zap.Int64("session_id", sessionID), zap.Error(err))
		if api.IsUnauthorized(err) {
			c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
			return err
		}
		c.store.Dispatch(state.SendFailed{SessionID: sessionID, Err: err.Error()})
		return err
	}
	c.store.Dispatch(state.ReplyReceived{SessionID: sessionID, Text: resp.AIMessage, At: c.opts.Now()})

	if rename {
		title := titleFrom(text, c.opts.TitleLength)
		if err := c.api.RenameSession(ctx, sessionID, title); err != nil {
			c.logger.Warn("rename after first message failed", zap.Int64("session_id", sessionID), zap.Error(err))
		}
	}
	c.refreshQuiet(ctx)
	return nil
}

// LoadConversation opens session id. A newer load, or NewConversation,
// cancels this one; a cancelled load changes nothing.
func (c *Controller) LoadConversation(ctx context.Context, id int64) error {
	loadCtx, done := c.beginLoad(ctx)
	defer done()

	c.store.Dispatch(state.LoadRequested{ID: id})
	detail, err := c.api.GetSession(loadCtx, id)
	if err != nil {
		if loadCtx.Err() != nil {
			c.logger.Debug("load superseded", zap.Int64("session_id", id))
			return err
		}
		c.logger.Warn("load failed", zap.Int64("session_id", id), zap.Error(err))
		if api.IsUnauthorized(err) {
			c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
			return err
		}
		c.store.Dispatch(state.LoadFailed{ID: id, Err: err.Error()})
		return err
	}

	loaded := state.ConversationLoaded{ID: id, Messages: detail.Messages}
	if item, ok := detail.LatestUpload(); ok {
		loaded.LatestUpload = &item
	}
	c.store.Dispatch(loaded)
	return nil
}

// CreateConversation creates a server session right away and makes it
// active. An empty title leaves the server default.
func (c *Controller) CreateConversation(ctx context.Context, title string) (int64, error) {
	c.NewConversation()
	id, err := c.createSession(ctx, title)
	if err != nil {
		return 0, err
	}
	c.refreshQuiet(ctx)
	return id, nil
}

// DeleteConversation deletes session id.
func (c *Controller) DeleteConversation(ctx context.Context, id int64) error {
	if err := c.api.DeleteSession(ctx, id); err != nil {
		return c.fail("Could not delete conversation", err)
	}
	c.store.Dispatch(state.ConversationDeleted{ID: id})
	c.refreshQuiet(ctx)
	return nil
}

// RenameConversation renames session id. The server silently keeps titles
// other than "New Chat", so the result is checked against a fresh listing.
func (c *Controller) RenameConversation(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return c.notice("Cannot rename", ErrEmptyTitle)
	}
	if err := c.api.RenameSession(ctx, id, title); err != nil {
		return c.fail("Could not rename conversation", err)
	}
	if err := c.RefreshSessions(ctx); err != nil {
		return err
	}
	for _, s := range c.store.State().Sessions {
		if s.ID == id && s.Title != title {
			c.info(ErrRenameIgnored.Error())
			return ErrRenameIgnored
		}
	}
	c.store.Dispatch(state.ConversationRenamed{ID: id, Title: title})
	return nil
}

// RefreshSessions reloads the session list.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	sessions, err := c.api.ListSessions(ctx)
	if err != nil {
		return c.fail("Could not load conversations", err)
	}
	c.store.Dispatch(state.SessionsLoaded{Sessions: sessions})
	return nil
}

// History groups the known sessions by recency.
func (c *Controller) History(now time.Time) history.Buckets[api.Session] {
	return history.Group(c.store.State().Sessions, now)
}

// SessionByIndex returns the n-th session (1-based) in History order.
func (c *Controller) SessionByIndex(now time.Time, n int) (api.Session, bool) {
	flat := c.History(now).Flatten()
	if n < 1 || n > len(flat) {
		return api.Session{}, false
	}
	return flat[n-1], true
}

// Messages fetches a conversation's messages without changing the active one.
func (c *Controller) Messages(ctx context.Context, id int64) ([]api.Message, error) {
	msgs, err := c.api.GetMessages(ctx, id)
	if err != nil {
		return nil, c.fail("Could not load messages", err)
	}
	return msgs, nil
}

// =============================================================================
// SEARCH AND EXPORT
// =============================================================================

// Search runs a server-side search. A blank query matches nothing and makes
// no request.
func (c *Controller) Search(ctx context.Context, query string) ([]api.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	results, err := c.api.Search(ctx, query)
	if err != nil {
		return nil, c.fail("Search failed", err)
	}
	return results, nil
}

// Export downloads the full history and writes it to dir in format.
func (c *Controller) Export(ctx context.Context, format, dir string) (string, error) {
	if _, err := export.New(format, nil); err != nil {
		return "", c.notice("Export failed", err)
	}
	doc, err := c.api.Export(ctx)
	if err != nil {
		return "", c.fail("Export failed", err)
	}
	path, err := export.WriteToDir(doc, format, dir, c.opts.Now())
	if err != nil {
		return "", c.notice("Export failed", err)
	}
	c.logger.Info("history exported", zap.String("path", path), zap.Int("sessions", len(doc.Sessions)))
	c.info("Exported to " + path)
	return path, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// createSession creates a server session and makes it active.
func (c *Controller) createSession(ctx context.Context, title string) (int64, error) {
	created, err := c.api.CreateSession(ctx, title)
	if err != nil {
		return 0, c.fail("Could not start a conversation", err)
	}
	c.logger.Debug("session created", zap.Int64("session_id", created.SessionID))
	c.store.Dispatch(state.ConversationCreated{ID: created.SessionID, Title: created.Title})
	return created.SessionID, nil
}

// ensureSession returns the active session, creating one when there is none.
func (c *Controller) ensureSession(ctx context.Context) (int64, error) {
	if id := c.store.State().ActiveID; id != 0 {
		return id, nil
	}
	return c.createSession(ctx, "")
}

func (c *Controller) refreshQuiet(ctx context.Context) {
	sessions, err := c.api.ListSessions(ctx)
	if err != nil {
		c.logger.Warn("session refresh failed", zap.Error(err))
		if api.IsUnauthorized(err) {
			c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
		}
		return
	}
	c.store.Dispatch(state.SessionsLoaded{Sessions: sessions})
}

func (c *Controller) beginLoad(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.loadMu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.loadSeq++
	seq := c.loadSeq
	c.cancelLoad = cancel
	c.loadMu.Unlock()

	return ctx, func() {
		cancel()
		c.loadMu.Lock()
		if c.loadSeq == seq {
			c.cancelLoad = nil
		}
		c.loadMu.Unlock()
	}
}

func (c *Controller) abortLoad() {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
}

// fail logs err and surfaces it: a 401 signs the user out, anything else
// becomes an error Notice prefixed with what.
func (c *Controller) fail(what string, err error) error {
	c.logger.Warn(strings.ToLower(what), zap.Error(err))
	if api.IsUnauthorized(err) {
		c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
		return err
	}
	c.store.Dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeError, Text: what + ": " + err.Error()}})
	return err
}

// notice surfaces a local error without the 401 handling.
func (c *Controller) notice(what string, err error) error {
	c.logger.Info(strings.ToLower(what), zap.Error(err))
	c.store.Dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeError, Text: what + ": " + err.Error()}})
	return err
}

func (c *Controller) info(text string) {
	c.store.Dispatch(state.SetNotice{Notice: state.Notice{Level: state.NoticeInfo, Text: text}})
}

// titleFrom is the first line of text cut to n characters.
func titleFrom(text string, n int) string {
	line := strings.TrimSpace(util.FirstLine(text))
	if runes := []rune(line); len(runes) > n {
		line = strings.TrimSpace(string(runes[:n]))
	}
	if line == "" {
		return api.DefaultSessionTitle
	}
	return line
}

// isCanceled reports whether err came from a cancelled context.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
