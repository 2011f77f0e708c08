package server

import (
	"context"
	"fmt"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
)

// PromoteAdmin grants admin rights to the account with email and marks it
// verified. It is the only way to create the first administrator.
func PromoteAdmin(ctx context.Context, users storage.UserStorage, email string) (*models.User, error) {
	user, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", email, err)
	}

	if err := users.SetAdmin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to promote %s: %w", email, err)
	}

	promoted, err := users.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s: %w", email, err)
	}
	return promoted, nil
}
