// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is where a locally started server listens.
	DefaultBaseURL = "http://127.0.0.1:5000"

	// DefaultUserAgent identifies the client to the server.
	DefaultUserAgent = "nexuschat-tui"

	// MaxResponseSize caps how much of a response body is read (10MB).
	// The export document is the largest response the server produces.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries a per-request UUID for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a NexusChat server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates a client for baseURL with an in-memory cookie jar.
// Use WithJar to persist the login across runs.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, _ := cookiejar.New(nil) // only fails for a non-nil PublicSuffixList
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Jar:           jar,
			CheckRedirect: stopRedirect,
		},
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
}

// stopRedirect keeps 3xx responses visible. The server answers unauthenticated
// non-JSON requests with a redirect to its login page.
func stopRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// WithJar sets the cookie jar that carries the session cookie.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	c.httpClient.Jar = jar
	return c
}

// WithHTTPClient replaces the underlying HTTP client. Its jar is kept when
// hc has none, and redirects are never followed.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *hc
	if clone.Jar == nil {
		clone.Jar = c.httpClient.Jar
	}
	clone.CheckRedirect = stopRedirect
	c.httpClient = &clone
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// BaseURL returns the server origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar in use.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// =============================================================================
// AUTH
// =============================================================================

// Signup creates an account. It does not log in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &messageResponse{})
}

// Login authenticates and stores the session cookie in the jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	req := loginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/login", req, &messageResponse{})
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, &messageResponse{})
}

// Profile returns the logged-in user's profile. A 401 here means "not logged in".
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile replaces the profile fields.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	if err := validateRequest(upd); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/api/profile/update", upd, &messageResponse{})
}

// =============================================================================
// SESSIONS
// =============================================================================

// ListSessions returns the user's sessions, most recently updated first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var resp struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// CreateSession creates a session. An empty title lets the server use "New Chat".
func (c *Client) CreateSession(ctx context.Context, title string) (*CreatedSession, error) {
	body := map[string]string{}
	if title = strings.TrimSpace(title); title != "" {
		body["title"] = title
	}
	var resp CreatedSession
	if err := c.doJSON(ctx, http.MethodPost, "/api/new_session", body, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == 0 {
		return nil, fmt.Errorf("%w: new session has no id", ErrMalformedResponse)
	}
	return &resp, nil
}

// GetSession returns a session with its messages, uploads and analyses.
func (c *Client) GetSession(ctx context.Context, id int64) (*SessionDetail, error) {
	var resp SessionDetail
	if err := c.doJSON(ctx, http.MethodGet, "/api/session/"+itoa(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessages returns only the messages of a session.
func (c *Client) GetMessages(ctx context.Context, id int64) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/"+itoa(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// RenameSession sets a session's name. The server only renames sessions
// still called "New Chat"; other sessions are left unchanged without error.
func (c *Client) RenameSession(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: session_name is required", ErrInvalidRequest)
	}
	body := map[string]string{"session_name": name}
	return c.doJSON(ctx, http.MethodPut, "/api/session/"+itoa(id)+"/update-name", body, &messageResponse{})
}

// DeleteSession deletes a session with its messages and files.
func (c *Client) DeleteSession(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/delete_session/"+itoa(id), nil, &messageResponse{})
}

// =============================================================================
// MESSAGES
// =============================================================================

// SendMessage posts a user message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	req.Content = strings.TrimSpace(req.Content)
	if req.Sender == "" {
		req.Sender = SenderUser
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var resp SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/message", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// FILES
// =============================================================================

// UploadFile uploads r as filename into a session. The server extracts text
// and runs its analyses before answering.
func (c *Client) UploadFile(ctx context.Context, sessionID int64, filename string, r io.Reader) (*UploadResult, error) {
	if sessionID <= 0 {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session_id", itoa(sessionID)); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	var resp UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/upload", &buf, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	if resp.FileID == 0 {
		return nil, fmt.Errorf("%w: upload has no file id", ErrMalformedResponse)
	}
	return &resp, nil
}

// AnalyzeImage runs a vision analysis of an uploaded image. An empty prompt
// uses the server's default prompt.
func (c *Client) AnalyzeImage(ctx context.Context, fileID int64, prompt string) (*ImageAnalysis, error) {
	body := map[string]string{}
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		body["prompt"] = prompt
	}
	var resp ImageAnalysis
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze_image/"+itoa(fileID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAnalyses returns every stored analysis for a session's files.
func (c *Client) ListAnalyses(ctx context.Context, sessionID int64) ([]Analysis, error) {
	var resp struct {
		Analyses []Analysis `json:"analyses"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analyses/"+itoa(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Analyses, nil
}

// AskAboutFile asks a question about one uploaded file.
func (c *Client) AskAboutFile(ctx context.Context, sessionID, itemID int64, question string) (*FileAnswer, error) {
	req := askRequest{SessionID: sessionID, ItemID: itemID, Question: strings.TrimSpace(question)}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var resp FileAnswer
	if err := c.doJSON(ctx, http.MethodPost, "/api/ask_about_file", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteItem deletes an uploaded file and its analyses.
func (c *Client) DeleteItem(ctx context.Context, itemID int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/delete_item/"+itoa(itemID), nil, &messageResponse{})
}

// =============================================================================
// SEARCH AND EXPORT
// =============================================================================

// Search returns messages containing query across all sessions.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	path := "/api/chats/search?q=" + url.QueryEscape(strings.TrimSpace(query))
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Export returns the user's entire chat history.
func (c *Client) Export(ctx context.Context) (*ExportDocument, error) {
	var doc ExportDocument
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats/export", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// doJSON sends body (when non-nil) as JSON and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	// The content type is sent on bodiless requests too: the server only
	// answers 401 (instead of redirecting) when the request claims to be JSON.
	return c.do(ctx, method, path, r, "application/json", out)
}

// do performs one request. It never retries.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	c.setHeaders(req, contentType, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", logPath(path)),
			zap.String("request_id", requestID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrTransport, ctxErr)
		}
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, logPath(path), unwrapURLError(err))
	}
	defer resp.Body.Close()

	c.logResponse(method, path, requestID, resp.StatusCode, duration)

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(method, path, resp, data)
	}
	return decodeBody(data, out)
}

func (c *Client) setHeaders(req *http.Request, contentType, requestID string) {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
}

// logResponse records request metadata only. Bodies and cookies are never logged.
func (c *Client) logResponse(method, path, requestID string, status int, duration time.Duration) {
	level := zap.DebugLevel
	if status >= 400 {
		level = zap.WarnLevel
	}
	c.logger.Check(level, "api request").Write(
		zap.String("method", method),
		zap.String("path", logPath(path)),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.String("request_id", requestID),
	)
}

// readResponse reads at most MaxResponseSize bytes of the body.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, MaxResponseSize)
	}
	return data, nil
}

// handleErrorResponse turns a non-2xx response into an *APIError carrying the
// server's "error" field when there is one.
func handleErrorResponse(method, path string, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	apiErr := &APIError{Status: status, Method: method, Path: logPath(path)}

	if status >= 300 && status < 400 {
		if strings.Contains(resp.Header.Get("Location"), "/login") {
			apiErr.Status = http.StatusUnauthorized
			apiErr.Message = "Authentication required"
			return apiErr
		}
	}

	var errBody errorResponse
	if err := json.Unmarshal(body, &errBody); err == nil && strings.TrimSpace(errBody.Error) != "" {
		apiErr.Message = errBody.Error
		return apiErr
	}
	apiErr.Message = statusMessage(status)
	return apiErr
}

// decodeBody unmarshals a 2xx body into out. A nil out discards the body.
func decodeBody(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// unwrapURLError drops the *url.Error wrapper, whose message repeats the full URL.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// logPath strips the query string so search terms stay out of logs.
func logPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
