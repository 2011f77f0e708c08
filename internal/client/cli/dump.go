package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/iudanet/accounts/internal/client/api"
	"github.com/iudanet/accounts/internal/client/auth"
)

func (c *Cli) runDump(ctx context.Context) error {
	resp, err := c.auth.Dump(ctx)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			return fmt.Errorf("%w. Please run 'accounts login' first", err)
		case api.StatusCode(err) == http.StatusForbidden:
			return fmt.Errorf("admin access required")
		default:
			return err
		}
	}

	var buf bytes.Buffer
	if err := dumpTmpl.Execute(&buf, resp); err != nil {
		return fmt.Errorf("failed to render accounts: %w", err)
	}
	c.io.Println(buf.String())

	return nil
}
