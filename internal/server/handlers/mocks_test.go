package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/accounts/internal/crypto"
	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
	"github.com/iudanet/accounts/internal/token"
)

const testSecret = "12345678901234567890123456789012"

var errStorage = errors.New("storage unavailable")

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// mockUserStorage is an in-memory UserStorage with injectable failures.
// Getters return copies so handlers only change what they persist.
type mockUserStorage struct {
	users          map[string]*models.User // id -> User
	createErr      error
	getErr         error
	updateErr      error
	listErr        error
	deleteErr      error
	addTokenErr    error
	removeTokenErr error
	deleted        []string
	addTokenCalls  int
	mu             sync.Mutex
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Tokens = slices.Clone(u.Tokens)
	if c.Tokens == nil {
		c.Tokens = []string{}
	}
	return &c
}

func (m *mockUserStorage) put(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
}

func (m *mockUserStorage) get(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (m *mockUserStorage) find(match func(u *models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, err := m.GetUserByEmail(ctx, user.Email); err == nil {
		return storage.ErrUserAlreadyExists
	}
	m.put(user)
	return nil
}

func (m *mockUserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockUserStorage) GetUserByEmailToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, storage.ErrUserNotFound
	}
	return m.find(func(u *models.User) bool { return u.EmailToken == token })
}

func (m *mockUserStorage) UpdateUser(ctx context.Context, user *models.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}
	updated := cloneUser(user)
	updated.Tokens = current.Tokens
	m.users[user.ID] = updated
	return nil
}

// change applies fn to the stored user under the lock
func (m *mockUserStorage) change(userID string, fn func(u *models.User) bool) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !fn(u) {
		return storage.ErrUserNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserStorage) MarkVerified(ctx context.Context, userID, emailToken string) error {
	return m.change(userID, func(u *models.User) bool {
		if emailToken == "" || u.EmailToken != emailToken {
			return false
		}
		u.MarkVerified()
		return true
	})
}

func (m *mockUserStorage) SetEmailToken(ctx context.Context, userID, emailToken string) error {
	return m.change(userID, func(u *models.User) bool {
		if u.IsVerified {
			return false
		}
		u.EmailToken = emailToken
		return true
	})
}

func (m *mockUserStorage) SetAdmin(ctx context.Context, userID string) error {
	return m.change(userID, func(u *models.User) bool {
		u.Admin = true
		u.MarkVerified()
		return true
	})
}

func (m *mockUserStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, cloneUser(u))
	}
	slices.SortFunc(users, func(a, b *models.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return users, nil
}

func (m *mockUserStorage) DeleteUser(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserStorage) AddSessionToken(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addTokenCalls++
	if m.addTokenErr != nil {
		return m.addTokenErr
	}
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.AppendToken(token)
	return nil
}

func (m *mockUserStorage) RemoveSessionToken(ctx context.Context, userID, token string) error {
	if m.removeTokenErr != nil {
		return m.removeTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !u.RemoveToken(token) {
		return storage.ErrTokenNotFound
	}
	return nil
}

func (m *mockUserStorage) Ping(ctx context.Context) error {
	return m.getErr
}

type sentVerification struct {
	to, name, token string
}

// mockMailer records verification emails
type mockMailer struct {
	err  error
	sent []sentVerification
}

func (m *mockMailer) SendVerification(ctx context.Context, to, name, token string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentVerification{to: to, name: name, token: token})
	return nil
}

func (m *mockMailer) last(t *testing.T) sentVerification {
	t.Helper()
	require.NotEmpty(t, m.sent, "no verification email sent")
	return m.sent[len(m.sent)-1]
}

// stubHasher fails on demand
type stubHasher struct {
	hashErr   error
	verifyErr error
	match     bool
}

func (s stubHasher) Hash(password string) (string, error) {
	if s.hashErr != nil {
		return "", s.hashErr
	}
	return "hash:" + password, nil
}

func (s stubHasher) Verify(password, digest string) (bool, error) {
	if s.verifyErr != nil {
		return false, s.verifyErr
	}
	return s.match, nil
}

// stubEmailTokens fails on demand
type stubEmailTokens struct {
	issueErr error
}

func (s stubEmailTokens) Issue(email string) (string, error) {
	return "", s.issueErr
}

func (s stubEmailTokens) Validate(token, email string) error {
	return nil
}

type testEnv struct {
	handler     *AuthHandler
	users       *mockUserStorage
	mailer      *mockMailer
	codec       *token.Codec
	hasher      *crypto.PasswordHasher
	emailTokens *token.EmailTokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := token.NewCodec(testSecret, crypto.AlgorithmAES256GCM)
	require.NoError(t, err)
	emailTokens, err := token.NewEmailTokens(testSecret, time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		users:       newMockUserStorage(),
		mailer:      &mockMailer{},
		codec:       codec,
		hasher:      crypto.NewPasswordHasher(4),
		emailTokens: emailTokens,
	}
	env.rebuild(AuthConfig{SessionTTL: time.Hour})
	return env
}

func (e *testEnv) rebuild(cfg AuthConfig) {
	e.handler = NewAuthHandler(setupTestLogger(), e.users, e.codec, e.hasher, e.emailTokens, e.mailer, cfg)
}

// addUser stores a user with the given password and verification state
func (e *testEnv) addUser(t *testing.T, email, password string, verified bool) *models.User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &models.User{
		ID:           "id-" + email,
		Email:        email,
		FirstName:    "John",
		LastName:     "Doe",
		PasswordHash: hash,
		IsVerified:   verified,
		Tokens:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !verified {
		user.EmailToken, err = e.emailTokens.Issue(email)
		require.NoError(t, err)
	}
	e.users.put(user)
	return user
}

// login issues a stored session token for user
func (e *testEnv) login(t *testing.T, user *models.User) string {
	t.Helper()
	tok, _, err := e.codec.Issue(user.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, e.users.AddSessionToken(context.Background(), user.ID, tok))
	return tok
}
