// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

var (
	// ErrBusy is returned when a message is submitted while another is in flight.
	ErrBusy = errors.New("a message is already being sent")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoActiveConversation is returned by operations that need one.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrNoActiveFile is returned when no file has been uploaded to the conversation.
	ErrNoActiveFile = errors.New("no active file, upload one first")

	// ErrNotImage is returned by AnalyzeImage for non-image files.
	ErrNotImage = errors.New("active file is not an image")

	// ErrRenameIgnored is returned when the server kept the old title. It only
	// renames conversations still called "New Chat".
	ErrRenameIgnored = errors.New(`only conversations still named "New Chat" can be renamed`)

	// ErrFileType is returned for files whose extension is not allowed.
	ErrFileType = errors.New("file type not allowed")

	// ErrFileTooLarge is returned for files above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileContent is returned when a file's content contradicts its extension.
	ErrFileContent = errors.New("file content does not match its extension")
)

// ErrEmptyTitle is returned by RenameConversation for a blank title.
var ErrEmptyTitle = errors.New("title is empty")
