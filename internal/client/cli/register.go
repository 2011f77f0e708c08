package cli

import (
	"context"
	"fmt"

	pkgapi "github.com/iudanet/accounts/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	firstName, err := c.io.ReadInput("First name (optional): ")
	if err != nil {
		return fmt.Errorf("failed to read first name: %w", err)
	}

	lastName, err := c.io.ReadInput("Last name (optional): ")
	if err != nil {
		return fmt.Errorf("failed to read last name: %w", err)
	}

	password, interactive, err := c.getPassword("Password: ")
	if err != nil {
		return err
	}

	if interactive {
		confirm, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	c.io.Println()
	c.io.Println("Registering...")

	resp, err := c.auth.Register(ctx, pkgapi.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("User ID: %s\n", resp.UserID)
	c.io.Println()
	c.io.Println("Check your inbox and run 'accounts verify <token>' with the token from the link.")

	return nil
}
