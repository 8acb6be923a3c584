// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// ServerTimeLayout is the layout the server uses for most timestamps.
const ServerTimeLayout = "2006-01-02 15:04:05"

// timeLayouts are tried in order. Layouts without a zone are parsed in
// time.Local; fractional seconds are accepted after the seconds field.
var timeLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{ServerTimeLayout, false},
	{"2006-01-02T15:04:05", false},
	{time.DateOnly, false},
}

// Timestamp is a server time. The zero value means "no timestamp".
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses any of the formats the server emits.
// An empty string yields the zero Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, l := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.Local)
		}
		if err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts a string in any supported layout, "" or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes RFC 3339, or "" for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// =============================================================================
// SESSIONS AND MESSAGES
// =============================================================================

// DefaultSessionTitle is the title of a session that has not been named yet.
const DefaultSessionTitle = "New Chat"

// Sender roles.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Session is a conversation owned by the logged-in user.
type Session struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message"`
}

// When is the time used to place the session in history: its last update,
// falling back to its creation.
func (s Session) When() time.Time {
	if !s.UpdatedAt.IsZero() {
		return s.UpdatedAt.Time
	}
	return s.CreatedAt.Time
}

// Message is one entry in a session's thread.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// When returns the message time.
func (m Message) When() time.Time { return m.Timestamp.Time }

// File types reported by the server.
const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
	FileTypeText  = "text"
)

// UploadedItem is a file attached to a session.
type UploadedItem struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	FileSize         int64     `json:"file_size"`
	UploadedAt       Timestamp `json:"uploaded_at"`
}

// IsImage reports whether the server classified the file as an image.
func (u UploadedItem) IsImage() bool { return u.FileType == FileTypeImage }

// Analysis is a stored analysis of an uploaded item.
type Analysis struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	AnalysisType string    `json:"analysis_type"`
	Summary      string    `json:"summary"`
	KeyPoints    string    `json:"key_points"`
	CreatedAt    Timestamp `json:"created_at"`
	Filename     string    `json:"filename"`
	FileType     string    `json:"file_type,omitempty"`
}

// SessionDetail is the response of GET /api/session/{id}.
type SessionDetail struct {
	Session struct {
		ID        int64     `json:"id"`
		Title     string    `json:"title"`
		CreatedAt Timestamp `json:"created_at"`
	} `json:"session"`
	Messages      []Message      `json:"messages"`
	UploadedItems []UploadedItem `json:"uploaded_items"`
	Analyses      []Analysis     `json:"analyses"`
}

// LatestUpload returns the most recently uploaded item, if any.
func (d *SessionDetail) LatestUpload() (UploadedItem, bool) {
	var (
		latest UploadedItem
		found  bool
	)
	for _, item := range d.UploadedItems {
		if !found || item.UploadedAt.After(latest.UploadedAt.Time) {
			latest, found = item, true
		}
	}
	return latest, found
}

// CreatedSession is the response of POST /api/new_session.
type CreatedSession struct {
	SessionID int64  `json:"session_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

// SendMessageRequest is the body of POST /api/message.
type SendMessageRequest struct {
	SessionID int64  `json:"session_id" validate:"required,gt=0"`
	Content   string `json:"content" validate:"required,notblank"`
	FileID    *int64 `json:"file_id,omitempty"`
	Sender    string `json:"sender,omitempty" validate:"omitempty,oneof=user assistant"`
}

// SendMessageResponse carries both sides of the exchange.
type SendMessageResponse struct {
	UserMessage string `json:"user_message"`
	AIMessage   string `json:"ai_message"`
	SessionID   int64  `json:"session_id"`
}

// =============================================================================
// AUTH AND PROFILE
// =============================================================================

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Profile is the logged-in user's profile.
type Profile struct {
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Avatar        string    `json:"avatar"`
	Theme         string    `json:"theme"`
	Language      string    `json:"language"`
	Notifications bool      `json:"notifications"`
	JoinedDate    Timestamp `json:"joined_date"`
	TotalChats    int       `json:"total_chats"`
}

// ProfileUpdate is the body of POST /api/profile/update. The server replaces
// every field, so callers should start from the current Profile.
// An empty Password leaves the password unchanged.
type ProfileUpdate struct {
	Username      string `json:"username" validate:"required,min=3,max=50"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password,omitempty" validate:"omitempty,min=8"`
	Theme         string `json:"theme,omitempty"`
	Language      string `json:"language,omitempty"`
	Notifications bool   `json:"notifications"`
}

// UpdateFromProfile seeds an update with the current profile values.
func UpdateFromProfile(p *Profile) ProfileUpdate {
	return ProfileUpdate{
		Username:      p.Username,
		Email:         p.Email,
		Theme:         p.Theme,
		Language:      p.Language,
		Notifications: p.Notifications,
	}
}

// =============================================================================
// FILES
// =============================================================================

// UploadAnalysis is one analysis produced at upload time.
type UploadAnalysis struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// UploadResult is the response of POST /api/upload.
type UploadResult struct {
	Message           string           `json:"message"`
	FileID            int64            `json:"file_id"`
	Filename          string           `json:"filename"`
	FileType          string           `json:"file_type"`
	Analyses          []UploadAnalysis `json:"analyses"`
	ExtractedText     string           `json:"extracted_text,omitempty"`
	VisionPreview     string           `json:"vision_preview,omitempty"`
	AnalysisAvailable bool             `json:"analysis_available"`
}

// Item converts the upload result to an UploadedItem reference.
func (r *UploadResult) Item() UploadedItem {
	return UploadedItem{
		ID:               r.FileID,
		OriginalFilename: r.Filename,
		FileType:         r.FileType,
	}
}

// ImageAnalysis is the response of POST /api/analyze_image/{id}.
type ImageAnalysis struct {
	Success    bool   `json:"success"`
	Analysis   string `json:"analysis"`
	PromptUsed string `json:"prompt_used"`
	Filename   string `json:"filename"`
}

// FileAnswer is the response of POST /api/ask_about_file.
type FileAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Filename string `json:"filename"`
}

type askRequest struct {
	SessionID int64  `json:"session_id" validate:"required,gt=0"`
	ItemID    int64  `json:"item_id" validate:"required,gt=0"`
	Question  string `json:"question" validate:"required,notblank"`
}

// =============================================================================
// SEARCH AND EXPORT
// =============================================================================

// SearchResult is one matching message.
type SearchResult struct {
	SessionID   int64     `json:"session_id"`
	SessionName string    `json:"session_name"`
	Content     string    `json:"content"`
	Timestamp   Timestamp `json:"timestamp"`
	Sender      string    `json:"sender"`
}

// When returns the time of the matching message.
func (r SearchResult) When() time.Time { return r.Timestamp.Time }

// ExportDocument is the full chat history returned by GET /api/chats/export.
type ExportDocument struct {
	ExportDate    Timestamp       `json:"export_date"`
	UserID        int64           `json:"user_id"`
	TotalSessions int             `json:"total_sessions"`
	Sessions      []ExportSession `json:"sessions"`
}

// ExportSession is one session in an export.
type ExportSession struct {
	SessionID     int64           `json:"session_id"`
	SessionName   string          `json:"session_name"`
	CreatedAt     Timestamp       `json:"created_at"`
	UpdatedAt     Timestamp       `json:"updated_at"`
	Messages      []ExportMessage `json:"messages"`
	UploadedFiles []ExportFile    `json:"uploaded_files"`
}

// ExportMessage is one message in an exported session.
type ExportMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// ExportFile is one uploaded file in an exported session.
type ExportFile struct {
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	UploadedAt Timestamp `json:"uploaded_at"`
}

// messageResponse is the generic {"message": "..."} acknowledgement.
type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse is the server's error body.
type errorResponse struct {
	Error string `json:"error"`
}
