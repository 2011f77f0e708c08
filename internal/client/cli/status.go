package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/accounts/internal/client/auth"
	"github.com/iudanet/accounts/internal/client/storage"
	pkgapi "github.com/iudanet/accounts/pkg/api"
)

type statusView struct {
	Session   *storage.Session
	Health    *pkgapi.HealthResponse
	Remaining time.Duration
	Expired   bool
}

func (c *Cli) runStatus(ctx context.Context) error {
	view := statusView{}

	session, err := c.auth.StoredSession(ctx)
	switch {
	case err == nil:
		view.Session = session
		view.Expired = session.Expired(time.Now())
		view.Remaining = time.Until(session.ExpiresAt).Round(time.Second)
	case errors.Is(err, auth.ErrNotAuthenticated):
	default:
		return fmt.Errorf("failed to load session: %w", err)
	}

	if health, err := c.auth.ServerStatus(ctx); err == nil {
		view.Health = health
	}

	var buf bytes.Buffer
	if err := statusTmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("failed to render status: %w", err)
	}
	c.io.Println(buf.String())

	return nil
}

func (c *Cli) runWhoami(ctx context.Context) error {
	session, err := c.auth.Session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return fmt.Errorf("%w. Please run 'accounts login' first", err)
		}
		return err
	}

	msg, err := c.auth.Home(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return fmt.Errorf("session was rejected by the server. Please run 'accounts login' again")
		}
		return err
	}

	c.io.Println(msg)
	c.io.Printf("Logged in as %s\n", session.Email)
	return nil
}
