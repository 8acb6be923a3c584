// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// account.go - login, signup, logout and profile.
//
// Examples:
//   nexuschat login ada
//   echo "$PASSWORD" | nexuschat login ada --password-stdin
//   nexuschat signup ada --email ada@example.com
//   nexuschat profile --json

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/commands"
)

// accountJSON is the --json payload of login and signup.
type accountJSON struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Sessions int    `json:"sessions"`
}

// askUsername returns the first positional or prompts for it on Err.
func (a *App) askUsername(p *ArgParser) (string, error) {
	if name := p.Positional(0); name != "" {
		return name, nil
	}
	name, err := readLine(a.in, a.Err, "Username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	if name == "" {
		return "", usageErrorf("username is required")
	}
	return name, nil
}

// askPassword reads the password from stdin with --password-stdin, from the
// terminal otherwise.
func (a *App) askPassword(p *ArgParser, prompt string) (string, error) {
	var (
		password string
		err      error
	)
	if p.BoolFlag("password-stdin") {
		password, err = readLine(a.in, io.Discard, "")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
	} else if password, err = a.ReadPassword(prompt); err != nil {
		return "", err
	}
	if password == "" {
		return "", usageErrorf("password is required")
	}
	return password, nil
}

func (a *App) runLogin(ctx context.Context, args Args) error {
	p := args.Params
	username, err := a.askUsername(p)
	if err != nil {
		return err
	}
	password, err := a.askPassword(p, "Password: ")
	if err != nil {
		return err
	}

	if err := a.Chat.Login(ctx, username, password); err != nil {
		return err
	}
	return a.reportAccount(CmdLogin, args, "Logged in as %s")
}

func (a *App) runSignup(ctx context.Context, args Args) error {
	p := args.Params
	username, err := a.askUsername(p)
	if err != nil {
		return err
	}
	email := p.Flag("email")
	if email == "" {
		if email, err = readLine(a.in, a.Err, "Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if email == "" {
		return usageErrorf("email is required")
	}
	password, err := a.askPassword(p, "Password: ")
	if err != nil {
		return err
	}
	if !p.BoolFlag("password-stdin") {
		again, err := a.ReadPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if again != password {
			return usageErrorf("passwords do not match")
		}
	}

	req := api.SignupRequest{Username: username, Email: email, Password: password}
	if err := a.Chat.Signup(ctx, req); err != nil {
		return err
	}
	return a.reportAccount(CmdSignup, args, "Account created, logged in as %s")
}

func (a *App) reportAccount(cmd Command, args Args, format string) error {
	st := a.Chat.State()
	out := accountJSON{Sessions: len(st.Sessions)}
	if st.User != nil {
		out.Username, out.Email = st.User.Username, st.User.Email
	}
	if args.JSON {
		return a.writeJSON(cmd, out)
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success(fmt.Sprintf(format, out.Username)))
	}
	return nil
}

func (a *App) runLogout(ctx context.Context, args Args) error {
	if err := a.Chat.Logout(ctx); err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdLogout, map[string]bool{"logged_out": true})
	}
	if !args.Quiet {
		fmt.Fprintln(a.Out, success("Logged out"))
	}
	return nil
}

func (a *App) runProfile(ctx context.Context, args Args) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	profile, err := a.Chat.Profile(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.writeJSON(CmdProfile, profile)
	}
	fmt.Fprintln(a.Out, commands.FormatProfile(profile))
	return nil
}
