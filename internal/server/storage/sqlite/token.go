package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/accounts/internal/server/storage"
)

// AddSessionToken appends a session token to the user's list.
// The existence check and the insert run as one statement.
func (s *Storage) AddSessionToken(ctx context.Context, userID, token string) error {
	query := `
		INSERT INTO user_tokens (user_id, token, created_at)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)
	`

	result, err := s.db.ExecContext(ctx, query, userID, token, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// RemoveSessionToken removes a single session token from the user's list
func (s *Storage) RemoveSessionToken(ctx context.Context, userID, token string) error {
	query := `
		DELETE FROM user_tokens
		WHERE id = (
			SELECT id FROM user_tokens
			WHERE user_id = ? AND token = ?
			ORDER BY id
			LIMIT 1
		)
	`

	result, err := s.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}
