package storage

import "context"

// SessionStorage changes a user's session token list atomically, so that
// concurrent logins and logouts of the same account never lose updates.
type SessionStorage interface {
	// AddSessionToken appends token to the user's session list
	// Returns ErrUserNotFound if user doesn't exist
	AddSessionToken(ctx context.Context, userID, token string) error

	// RemoveSessionToken removes a single token from the user's session list
	// Returns ErrTokenNotFound if the token is not in the list
	RemoveSessionToken(ctx context.Context, userID, token string) error
}
