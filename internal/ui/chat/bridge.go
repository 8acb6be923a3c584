// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/nexuschat/internal/state"
)

// subscribe turns store transitions into a coalescing signal; the model reads
// the current state when the signal arrives. The listener must not block:
// Dispatch holds the store lock while listeners run.
func subscribe(store *state.Store) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(prev, next state.State) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, unsubscribe
}

// waitForChange blocks until the next store change.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}
