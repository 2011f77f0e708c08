// Package cli implements the accounts command line client.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iudanet/accounts/internal/client/auth"
	"github.com/iudanet/accounts/internal/client/iocli"
)

// PasswordEnv supplies the password non-interactively
const PasswordEnv = "ACCOUNTS_PASSWORD"

// Passwords lists the non-interactive password sources
type Passwords struct {
	FromFile string
	FromArgs string
}

// Cli runs client commands
type Cli struct {
	io        iocli.IO
	auth      *auth.Service
	passwords Passwords
}

// New creates a Cli
func New(terminal iocli.IO, authService *auth.Service, passwords Passwords) *Cli {
	return &Cli{
		io:        terminal,
		auth:      authService,
		passwords: passwords,
	}
}

// getPassword returns the password from the first available source:
// the ACCOUNTS_PASSWORD environment variable, the password file, the
// command line flag, then an interactive prompt.
// Interactive reports whether the prompt was used.
func (c *Cli) getPassword(prompt string) (password string, interactive bool, err error) {
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, false, nil
	}

	if c.passwords.FromFile != "" {
		content, err := os.ReadFile(c.passwords.FromFile)
		if err != nil {
			return "", false, fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", false, fmt.Errorf("password file is empty")
		}
		return password, false, nil
	}

	if c.passwords.FromArgs != "" {
		return c.passwords.FromArgs, false, nil
	}

	password, err = c.io.ReadPassword(prompt)
	if err != nil {
		return "", true, fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", true, fmt.Errorf("password cannot be empty")
	}
	return password, true, nil
}

// PrintUsage writes the command overview to w
func PrintUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, usage)
}

const usage = `Accounts Client

Usage:
  accounts [OPTIONS] COMMAND [ARGS]

Options:
  -version              Show version information
  -server URL           Server URL (default: http://localhost:8080)
  -db PATH              Path to the local session database (default: accounts-client.db)
  -password PASSWORD    Password (not recommended, use env var or file)
  -password-file PATH   Path to a file containing the password

Password priority (highest to lowest):
  1. ACCOUNTS_PASSWORD environment variable
  2. -password-file
  3. -password
  4. Interactive prompt

Commands:
  register              Create an account
  verify <token>        Confirm the email address with the emailed token
  resend [email]        Send a new verification email
  login                 Log in and store the session locally
  logout                Revoke the current session
  status                Show the local session and server status
  whoami                Ask the server who the current session belongs to
  dump                  List all accounts (admin only)

Examples:
  accounts register
  accounts verify eyJhbGciOiJIUzI1NiIs...
  accounts login
  accounts -server https://accounts.example.com whoami
`
