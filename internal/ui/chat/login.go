// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/ui/styles"
)

// Login form fields. The email field is only shown when signing up.
const (
	fieldUsername = iota
	fieldEmail
	fieldPassword
	fieldCount
)

// loginForm collects credentials for login or signup.
type loginForm struct {
	inputs     [fieldCount]textinput.Model
	focused    int
	signup     bool
	submitting bool
	// problem is a local validation message, shown above the store notice.
	problem string
}

func newLoginForm() loginForm {
	var f loginForm

	f.inputs[fieldUsername] = textinput.New()
	f.inputs[fieldUsername].Placeholder = "username"
	f.inputs[fieldUsername].CharLimit = 50

	f.inputs[fieldEmail] = textinput.New()
	f.inputs[fieldEmail].Placeholder = "you@example.com"
	f.inputs[fieldEmail].CharLimit = 254

	f.inputs[fieldPassword] = textinput.New()
	f.inputs[fieldPassword].Placeholder = "password"
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '*'
	f.inputs[fieldPassword].CharLimit = 128

	f.focus(fieldUsername)
	return f
}

// fields returns the visible fields in tab order.
func (f *loginForm) fields() []int {
	if f.signup {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldUsername, fieldPassword}
}

func (f *loginForm) focus(field int) tea.Cmd {
	f.focused = field
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == field {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

// move shifts focus by delta through the visible fields, wrapping around.
func (f *loginForm) move(delta int) tea.Cmd {
	order := f.fields()
	pos := 0
	for i, field := range order {
		if field == f.focused {
			pos = i
		}
	}
	pos = (pos + delta + len(order)) % len(order)
	return f.focus(order[pos])
}

// isLast reports whether the focused field is the last one.
func (f *loginForm) isLast() bool {
	order := f.fields()
	return f.focused == order[len(order)-1]
}

// toggle switches between login and signup.
func (f *loginForm) toggle() tea.Cmd {
	f.signup = !f.signup
	f.problem = ""
	return f.focus(fieldUsername)
}

// resetPassword clears the password after a failed attempt.
func (f *loginForm) resetPassword() {
	f.inputs[fieldPassword].SetValue("")
}

func (f *loginForm) username() string { return strings.TrimSpace(f.inputs[fieldUsername].Value()) }
func (f *loginForm) email() string    { return strings.TrimSpace(f.inputs[fieldEmail].Value()) }
func (f *loginForm) password() string { return f.inputs[fieldPassword].Value() }

// validate checks that the visible fields are filled in. The server enforces
// the actual rules.
func (f *loginForm) validate() string {
	switch {
	case f.username() == "":
		return "Username is required"
	case f.signup && f.email() == "":
		return "Email is required"
	case f.password() == "":
		return "Password is required"
	}
	return ""
}

// signupRequest builds the signup body from the form.
func (f *loginForm) signupRequest() api.SignupRequest {
	return api.SignupRequest{Username: f.username(), Email: f.email(), Password: f.password()}
}

// update forwards msg to the focused input.
func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

func (f *loginForm) view(theme *styles.Theme, notice string, noticeIsError bool) string {
	title := "Log in to NexusChat"
	hint := "Enter: next/submit  Tab: next field  C-t: create an account  C-c: quit"
	if f.signup {
		title = "Create a NexusChat account"
		hint = "Enter: next/submit  Tab: next field  C-t: back to login  C-c: quit"
	}

	labels := map[int]string{fieldUsername: "Username", fieldEmail: "Email", fieldPassword: "Password"}
	var rows []string
	rows = append(rows, theme.LoginTitle.Render(title))
	for _, field := range f.fields() {
		label := theme.FieldLabel.Render(labels[field])
		if field == f.focused {
			label = theme.FieldFocus.Render(labels[field])
		}
		rows = append(rows, label, f.inputs[field].View(), "")
	}

	switch {
	case f.submitting:
		rows = append(rows, theme.Info("Signing in..."))
	case f.problem != "":
		rows = append(rows, theme.Error(f.problem))
	case notice != "" && noticeIsError:
		rows = append(rows, theme.Error(notice))
	case notice != "":
		rows = append(rows, theme.Info(notice))
	}
	rows = append(rows, theme.Help.Render(hint))

	return theme.LoginBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
