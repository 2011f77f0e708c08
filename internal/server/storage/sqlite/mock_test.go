package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/accounts/internal/server/storage"
)

var errDB = errors.New("disk I/O error")

func setupMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Storage{db: db}, mock
}

func TestStorage_GetUserByID_QueryError(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectQuery("FROM users WHERE id").WillReturnError(errDB)

	_, err := s.GetUserByID(context.Background(), "id")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDB)
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetUserByEmail_TokensQueryError(t *testing.T) {
	s, mock := setupMockStorage(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "password_hash",
		"is_verified", "email_token", "admin", "created_at", "updated_at",
	}).AddRow("id", "a@example.com", "A", "B", "hash", true, nil, false, now, now)

	mock.ExpectQuery("FROM users WHERE email").WillReturnRows(rows)
	mock.ExpectQuery("FROM user_tokens").WillReturnError(errDB)

	_, err := s.GetUserByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, errDB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateUser_InsertError(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(errDB)
	mock.ExpectRollback()

	err := s.CreateUser(context.Background(), newTestUser("x@example.com"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrUserAlreadyExists)
	assert.ErrorIs(t, err, errDB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CreateUser_UniqueViolation(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))
	mock.ExpectRollback()

	err := s.CreateUser(context.Background(), newTestUser("x@example.com"))
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ListUsers_Error(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectQuery("FROM users ORDER BY").WillReturnError(errDB)

	users, err := s.ListUsers(context.Background())
	assert.ErrorIs(t, err, errDB)
	assert.Nil(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_AddSessionToken_Error(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("INSERT INTO user_tokens").WillReturnError(errDB)

	err := s.AddSessionToken(context.Background(), "id", "tok")
	assert.ErrorIs(t, err, errDB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_RemoveSessionToken_Error(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("DELETE FROM user_tokens").WillReturnError(errDB)

	err := s.RemoveSessionToken(context.Background(), "id", "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrTokenNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_DeleteUser_RollsBackOnError(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users").WillReturnError(errDB)
	mock.ExpectRollback()

	err := s.DeleteUser(context.Background(), "id")
	assert.ErrorIs(t, err, errDB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_SetAdmin_ExecError(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("UPDATE users").WillReturnError(errDB)

	err := s.SetAdmin(context.Background(), "id")
	assert.ErrorIs(t, err, errDB)
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_MarkVerified_NoRows(t *testing.T) {
	s, mock := setupMockStorage(t)

	mock.ExpectExec("UPDATE users").
		WithArgs(sqlmock.AnyArg(), "id", "token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.MarkVerified(context.Background(), "id", "token")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
