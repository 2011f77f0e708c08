package storage

import (
	"context"

	"github.com/iudanet/accounts/internal/models"
)

// UserStorage defines interface for account persistence
type UserStorage interface {
	SessionStorage

	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if the email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email (exact, case-sensitive match)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID together with its session tokens
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByEmailToken retrieves the user holding the given email verification token
	// Returns ErrUserNotFound if no user holds it (an empty token never matches)
	GetUserByEmailToken(ctx context.Context, token string) (*models.User, error)

	// UpdateUser saves profile, verification and admin fields.
	// Session tokens are NOT written; use SessionStorage for them.
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUser(ctx context.Context, user *models.User) error

	// MarkVerified sets the verified flag and clears the pending email token,
	// provided the user still holds emailToken. Other fields are untouched.
	// Returns ErrUserNotFound if no user with that ID holds the token
	MarkVerified(ctx context.Context, userID, emailToken string) error

	// SetEmailToken replaces the pending email token of an unverified user
	// Returns ErrUserNotFound if user doesn't exist or is already verified
	SetEmailToken(ctx context.Context, userID, emailToken string) error

	// SetAdmin grants admin rights and marks the user verified
	// Returns ErrUserNotFound if user doesn't exist
	SetAdmin(ctx context.Context, userID string) error

	// ListUsers returns all users ordered by creation time
	ListUsers(ctx context.Context) ([]*models.User, error)

	// DeleteUser deletes user and its sessions by ID
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error

	// Ping checks that the storage is reachable
	Ping(ctx context.Context) error
}
