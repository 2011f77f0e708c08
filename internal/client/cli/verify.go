package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runVerify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing token. Usage: accounts verify <token>")
	}

	if err := c.auth.VerifyEmail(ctx, args[0]); err != nil {
		return err
	}

	c.io.Println("✓ Email verified! You can now run 'accounts login'.")
	return nil
}

func (c *Cli) runResend(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		email, err = c.io.ReadInput("Email: ")
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}

	if err := c.auth.ResendVerification(ctx, email); err != nil {
		return err
	}

	c.io.Printf("✓ A new verification email was sent to %s\n", email)
	return nil
}
