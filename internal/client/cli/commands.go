package cli

import (
	"context"
	"fmt"
)

// Run executes command with its arguments
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "verify":
		return c.runVerify(ctx, args)
	case "resend":
		return c.runResend(ctx, args)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "whoami":
		return c.runWhoami(ctx)
	case "dump":
		return c.runDump(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}
