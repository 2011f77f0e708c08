package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, email, first_name, last_name, password_hash, is_verified, email_token, admin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var emailToken sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsVerified,
		&emailToken,
		&user.Admin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.EmailToken = emailToken.String
	return user, nil
}

// nullable stores empty strings as NULL so the partial unique index on
// email_token ignores accounts without a pending verification.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueEmailViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: users.email")
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsVerified,
		nullable(user.EmailToken),
		user.Admin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueEmailViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, token := range user.Tokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_tokens (user_id, token, created_at) VALUES (?, ?, ?)`,
			user.ID, token, user.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert session token: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
}

// GetUserByEmailToken retrieves user by pending email verification token
func (s *Storage) GetUserByEmailToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, storage.ErrUserNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email_token = ?`, token)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokens, err := loadTokens(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Tokens = tokens

	return user, nil
}

func loadTokens(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT token FROM user_tokens WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session tokens: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan session token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session tokens: %w", err)
	}

	return tokens, nil
}

// UpdateUser updates user fields except session tokens
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, password_hash = ?,
		    is_verified = ?, email_token = ?, admin = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsVerified,
		nullable(user.EmailToken),
		user.Admin,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueEmailViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
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

// MarkVerified consumes the pending email token and sets the verified flag
func (s *Storage) MarkVerified(ctx context.Context, userID, emailToken string) error {
	if emailToken == "" {
		return storage.ErrUserNotFound
	}
	return s.execOne(ctx, "mark user verified", `
		UPDATE users
		SET is_verified = 1, email_token = NULL, updated_at = ?
		WHERE id = ? AND email_token = ?
	`, time.Now().UTC(), userID, emailToken)
}

// SetEmailToken stores a new pending email token for an unverified user
func (s *Storage) SetEmailToken(ctx context.Context, userID, emailToken string) error {
	return s.execOne(ctx, "set email token", `
		UPDATE users
		SET email_token = ?, updated_at = ?
		WHERE id = ? AND is_verified = 0
	`, nullable(emailToken), time.Now().UTC(), userID)
}

// SetAdmin grants admin rights and marks the user verified
func (s *Storage) SetAdmin(ctx context.Context, userID string) error {
	return s.execOne(ctx, "set admin", `
		UPDATE users
		SET admin = 1, is_verified = 1, email_token = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), userID)
}

// execOne runs a single-row update, mapping zero affected rows to ErrUserNotFound
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
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

// ListUsers returns all users ordered by creation time
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	byID := make(map[string]*models.User)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Tokens = []string{}
		users = append(users, user)
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	tokenRows, err := s.db.QueryContext(ctx,
		`SELECT user_id, token FROM user_tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query session tokens: %w", err)
	}
	defer tokenRows.Close()

	for tokenRows.Next() {
		var userID, token string
		if err := tokenRows.Scan(&userID, &token); err != nil {
			return nil, fmt.Errorf("failed to scan session token: %w", err)
		}
		if user, ok := byID[userID]; ok {
			user.Tokens = append(user.Tokens, token)
		}
	}
	if err := tokenRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session tokens: %w", err)
	}

	return users, nil
}

// DeleteUser deletes user and all of its sessions
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete session tokens: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return storage.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
