// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/config"
)

// stateChangedMsg reports that the store changed at least once since the
// last one was delivered.
type stateChangedMsg struct{}

// opDoneMsg is the result of a controller call or slash command.
type opDoneMsg struct {
	err error
}

// noticeExpiredMsg clears a notice that is still showing text.
type noticeExpiredMsg struct {
	text string
}

// searchFireMsg asks for the query typed at seq to be run.
type searchFireMsg struct {
	seq int
}

// searchResultMsg carries the results of the query typed at seq.
type searchResultMsg struct {
	seq     int
	query   string
	results []api.SearchResult
	err     error
}

// ConfigReloadedMsg is sent when the config file changes on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}
