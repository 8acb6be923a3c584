// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the conversation controller shared by the TUI, the REPL and
// the one-shot commands.
//
// A Controller turns user intents (send a message, open a conversation,
// upload files) into API calls and dispatches the outcome to a state.Store.
// It never touches the screen: renderers follow the store.
//
// # Error Policy
//
// Every failure is logged and returned. It is also surfaced through the
// store: message and upload failures become inline thread entries, anything
// else becomes an error Notice. A 401 from any call dispatches
// state.Unauthorized, which returns the UI to the login view. Nothing is
// retried.
//
// # Superseded Responses
//
// Opening another conversation, or starting a new one, cancels the context of
// a conversation load that is still in flight. A message send is not
// cancelled (the server stores the exchange either way); its reply is
// dropped by the reducer if the user has moved on.
package chat
