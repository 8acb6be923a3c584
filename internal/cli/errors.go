// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error values and exit codes for nexuschat commands.
//
// Commands always return errors; Main decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/chat"
	"github.com/jeranaias/nexuschat/internal/commands"
	"github.com/jeranaias/nexuschat/internal/config"
	"github.com/jeranaias/nexuschat/internal/export"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not logged in or was rejected
	ExitAuthError = 4
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted is the conventional 128+SIGINT
	ExitInterrupted = 130
)

// =============================================================================
// ERROR VALUES
// =============================================================================

// ErrUsage marks mistakes in the command line.
var ErrUsage = errors.New("usage")

// ErrNotLoggedIn is returned by commands that need a signed-in user.
var ErrNotLoggedIn = errors.New("not logged in, run 'nexuschat login' first")

// ErrCancelled is returned when a confirmation prompt is declined.
var ErrCancelled = errors.New("cancelled")

// usageErrorf builds an error matching ErrUsage. Only the message is shown.
func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type usageError struct{ msg string }

func (e *usageError) Error() string        { return e.msg }
func (e *usageError) Is(target error) bool { return target == ErrUsage }

// ConfigError is a configuration file that could not be loaded.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TTYRequiredError is returned when an operation needs an interactive terminal.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	return "stdin is not a terminal; cannot " + e.Operation + " interactively"
}

func (e *TTYRequiredError) Is(target error) bool { return target == ErrUsage }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	var validateErrs config.ValidateErrors
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrUsage), errors.Is(err, commands.ErrUsage), errors.Is(err, api.ErrInvalidRequest),
		errors.Is(err, export.ErrUnknownFormat):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.Is(err, ErrNotLoggedIn), errors.Is(err, api.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, api.ErrTransport):
		return ExitNetworkError
	case errors.Is(err, api.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, chat.ErrFileType), errors.Is(err, chat.ErrFileTooLarge), errors.Is(err, chat.ErrFileContent):
		return ExitUsageError
	default:
		return ExitGeneralError
	}
}

// errorKind names the exit code category for JSON output.
func errorKind(err error) string {
	switch ExitCode(err) {
	case ExitUsageError:
		return "usage_error"
	case ExitConfigError:
		return "config_error"
	case ExitAuthError:
		return "auth_error"
	case ExitNetworkError:
		return "network_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitTimeoutError:
		return "timeout_error"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "error"
	}
}

// DisplayError writes err to w, as a JSON error response in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if errors.Is(err, api.ErrTransport) {
		fmt.Fprintln(w, MutedStyle.Render("Is the server running? Check server.base_url in the config."))
	}
}
