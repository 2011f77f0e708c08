package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/accounts/internal/crypto"
	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
	"github.com/iudanet/accounts/internal/token"
	"github.com/iudanet/accounts/pkg/api"
)

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withSession(req *http.Request, user *models.User, tok string) *http.Request {
	return req.WithContext(WithSession(req.Context(), &Session{User: user, Token: tok}))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Register_Success(t *testing.T) {
	env := newTestEnv(t)

	req := newJSONRequest(t, http.MethodPost, "/user/signup", api.RegisterRequest{
		Email:     "john@example.com",
		Password:  "secret",
		FirstName: "John",
		LastName:  "Doe",
	})
	w := httptest.NewRecorder()
	env.handler.Register(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.UserID)
	assert.NotEmpty(t, resp.Message)

	stored := env.users.get(resp.UserID)
	require.NotNil(t, stored)
	assert.Equal(t, "john@example.com", stored.Email)
	assert.False(t, stored.IsVerified)
	assert.False(t, stored.Admin)
	assert.Empty(t, stored.Tokens)
	assert.NotEqual(t, "secret", stored.PasswordHash)

	ok, err := env.hasher.Verify("secret", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	sent := env.mailer.last(t)
	assert.Equal(t, "john@example.com", sent.to)
	assert.Equal(t, "John Doe", sent.name)
	assert.Equal(t, stored.EmailToken, sent.token)
	assert.NoError(t, env.emailTokens.Validate(sent.token, "john@example.com"))
}

func TestAuthHandler_Register_Errors(t *testing.T) {
	tests := []struct {
		setup      func(t *testing.T, env *testEnv)
		body       any
		name       string
		wantStatus int
	}{
		{
			name:       "invalid json",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing email",
			body:       api.RegisterRequest{Password: "secret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       api.RegisterRequest{Email: "john@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed email",
			body:       api.RegisterRequest{Email: "john", Password: "secret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate email",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "other", true)
			},
			body:       api.RegisterRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusConflict,
		},
		{
			name: "storage failure",
			setup: func(t *testing.T, env *testEnv) {
				env.users.createErr = errStorage
			},
			body:       api.RegisterRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "hash failure",
			setup: func(t *testing.T, env *testEnv) {
				env.handler = NewAuthHandler(setupTestLogger(), env.users, env.codec,
					stubHasher{hashErr: errors.New("boom")}, env.emailTokens, env.mailer, AuthConfig{SessionTTL: time.Hour})
			},
			body:       api.RegisterRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "email token failure",
			setup: func(t *testing.T, env *testEnv) {
				env.handler = NewAuthHandler(setupTestLogger(), env.users, env.codec,
					env.hasher, stubEmailTokens{issueErr: errors.New("boom")}, env.mailer, AuthConfig{SessionTTL: time.Hour})
			},
			body:       api.RegisterRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}
			before := len(env.users.users)

			w := httptest.NewRecorder()
			env.handler.Register(w, newJSONRequest(t, http.MethodPost, "/user/signup", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, Category(tt.wantStatus), resp.Error)
			assert.NotEmpty(t, resp.Message)
			assert.Len(t, env.users.users, before, "no user must be created")
			assert.Empty(t, env.mailer.sent)
		})
	}
}

func TestAuthHandler_Register_MailFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("smtp down")

	w := httptest.NewRecorder()
	env.handler.Register(w, newJSONRequest(t, http.MethodPost, "/user/signup",
		api.RegisterRequest{Email: "john@example.com", Password: "secret"}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, api.CategoryInternalError, decodeError(t, w).Error)
	assert.Empty(t, env.users.users)
	assert.Len(t, env.users.deleted, 1)

	// the address can be registered again once mail works
	env.mailer.err = nil
	w = httptest.NewRecorder()
	env.handler.Register(w, newJSONRequest(t, http.MethodPost, "/user/signup",
		api.RegisterRequest{Email: "john@example.com", Password: "secret"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", false)

	w := httptest.NewRecorder()
	env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+user.EmailToken, nil))

	require.Equal(t, http.StatusOK, w.Code)
	stored := env.users.get(user.ID)
	assert.True(t, stored.IsVerified)
	assert.Empty(t, stored.EmailToken)

	// single use
	w = httptest.NewRecorder()
	env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+user.EmailToken, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_VerifyEmail_Errors(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t)
		w := httptest.NewRecorder()
		env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, api.CategoryUnauthenticated, decodeError(t, w).Error)
	})

	t.Run("unknown token", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "john@example.com", "secret", false)
		w := httptest.NewRecorder()
		env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token=bad", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lookup failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.users.getErr = errStorage
		w := httptest.NewRecorder()
		env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token=abc", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestEnv(t)
		past := time.Now().Add(-2 * time.Hour)
		old, err := token.NewEmailTokens(testSecret, time.Hour, token.WithClock(func() time.Time { return past }))
		require.NoError(t, err)
		expired, err := old.Issue("john@example.com")
		require.NoError(t, err)

		user := env.addUser(t, "john@example.com", "secret", false)
		user.EmailToken = expired
		env.users.put(user)

		w := httptest.NewRecorder()
		env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+expired, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, env.users.get(user.ID).IsVerified)
	})

	t.Run("update failure", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "john@example.com", "secret", false)
		env.users.updateErr = errStorage
		w := httptest.NewRecorder()
		env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+user.EmailToken, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAuthHandler_ResendVerification(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", false)
	oldToken := user.EmailToken

	w := httptest.NewRecorder()
	env.handler.ResendVerification(w, newJSONRequest(t, http.MethodPost, "/user/verify-email/resend",
		api.ResendVerificationRequest{Email: "john@example.com"}))

	require.Equal(t, http.StatusOK, w.Code)
	stored := env.users.get(user.ID)
	assert.NotEqual(t, oldToken, stored.EmailToken)
	assert.Equal(t, stored.EmailToken, env.mailer.last(t).token)
}

func TestAuthHandler_ResendVerification_Errors(t *testing.T) {
	tests := []struct {
		setup      func(t *testing.T, env *testEnv)
		body       any
		name       string
		wantStatus int
	}{
		{name: "invalid json", body: "[", wantStatus: http.StatusBadRequest},
		{name: "missing email", body: api.ResendVerificationRequest{}, wantStatus: http.StatusBadRequest},
		{name: "unknown email", body: api.ResendVerificationRequest{Email: "nobody@example.com"}, wantStatus: http.StatusNotFound},
		{
			name: "already verified",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", true)
			},
			body:       api.ResendVerificationRequest{Email: "john@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "mail failure",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", false)
				env.mailer.err = errors.New("smtp down")
			},
			body:       api.ResendVerificationRequest{Email: "john@example.com"},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}
			w := httptest.NewRecorder()
			env.handler.ResendVerification(w, newJSONRequest(t, http.MethodPost, "/user/verify-email/resend", tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", true)

	w := httptest.NewRecorder()
	env.handler.Login(w, newJSONRequest(t, http.MethodPost, "/user/login",
		api.LoginRequest{Email: "john@example.com", Password: "secret"}))

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

	userID, _, err := env.codec.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	stored := env.users.get(user.ID)
	assert.Equal(t, []string{resp.Token}, stored.Tokens)
}

func TestAuthHandler_Login_MultipleSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", true)

	for range 3 {
		w := httptest.NewRecorder()
		env.handler.Login(w, newJSONRequest(t, http.MethodPost, "/user/login",
			api.LoginRequest{Email: "john@example.com", Password: "secret"}))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Len(t, env.users.get(user.ID).Tokens, 3)
}

func TestAuthHandler_Login_PrunesStaleSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", true)
	live := env.login(t, user)
	require.NoError(t, env.users.AddSessionToken(context.Background(), user.ID, "garbage"))

	past := time.Now().Add(-2 * time.Hour)
	oldCodec, err := token.NewCodec(testSecret, crypto.AlgorithmAES256GCM, token.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	expired, _, err := oldCodec.Issue(user.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, env.users.AddSessionToken(context.Background(), user.ID, expired))

	w := httptest.NewRecorder()
	env.handler.Login(w, newJSONRequest(t, http.MethodPost, "/user/login",
		api.LoginRequest{Email: "john@example.com", Password: "secret"}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []string{live, resp.Token}, env.users.get(user.ID).Tokens)
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		setup      func(t *testing.T, env *testEnv)
		body       any
		name       string
		wantStatus int
	}{
		{name: "invalid json", body: "nope", wantStatus: http.StatusBadRequest},
		{name: "missing password", body: api.LoginRequest{Email: "john@example.com"}, wantStatus: http.StatusBadRequest},
		{name: "missing email", body: api.LoginRequest{Password: "secret"}, wantStatus: http.StatusBadRequest},
		{name: "unknown user", body: api.LoginRequest{Email: "john@example.com", Password: "secret"}, wantStatus: http.StatusNotFound},
		{
			name: "wrong password",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", true)
			},
			body:       api.LoginRequest{Email: "john@example.com", Password: "wrong"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unverified user",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", false)
			},
			body:       api.LoginRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "comparison error",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", true)
				env.handler = NewAuthHandler(setupTestLogger(), env.users, env.codec,
					stubHasher{verifyErr: errors.New("corrupt digest")}, env.emailTokens, env.mailer, AuthConfig{SessionTTL: time.Hour})
			},
			body:       api.LoginRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "lookup failure",
			setup: func(t *testing.T, env *testEnv) {
				env.users.getErr = errStorage
			},
			body:       api.LoginRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "session persist failure",
			setup: func(t *testing.T, env *testEnv) {
				env.addUser(t, "john@example.com", "secret", true)
				env.users.addTokenErr = errStorage
			},
			body:       api.LoginRequest{Email: "john@example.com", Password: "secret"},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(t, env)
			}
			w := httptest.NewRecorder()
			env.handler.Login(w, newJSONRequest(t, http.MethodPost, "/user/login", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, Category(tt.wantStatus), resp.Error)
			assert.False(t, strings.Contains(w.Body.String(), "secret"))
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", true)
	first := env.login(t, user)
	second := env.login(t, user)

	req := withSession(httptest.NewRequest(http.MethodGet, "/user/logout", nil), env.users.get(user.ID), first)
	w := httptest.NewRecorder()
	env.handler.Logout(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// only the request's token is revoked
	assert.Equal(t, []string{second}, env.users.get(user.ID).Tokens)

	// a repeated logout with the same (already revoked) token still succeeds
	w = httptest.NewRecorder()
	env.handler.Logout(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_Logout_Errors(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		env := newTestEnv(t)
		w := httptest.NewRecorder()
		env.handler.Logout(w, httptest.NewRequest(http.MethodGet, "/user/logout", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, api.CategoryClientError, decodeError(t, w).Error)
	})

	t.Run("storage failure", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "john@example.com", "secret", true)
		tok := env.login(t, user)
		env.users.removeTokenErr = errStorage

		w := httptest.NewRecorder()
		env.handler.Logout(w, withSession(httptest.NewRequest(http.MethodGet, "/user/logout", nil), user, tok))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAuthHandler_Login_WrongPasswordKeepsSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", true)
	existing := env.login(t, user)
	calls := env.users.addTokenCalls

	w := httptest.NewRecorder()
	env.handler.Login(w, newJSONRequest(t, http.MethodPost, "/user/login",
		api.LoginRequest{Email: "john@example.com", Password: "wrong"}))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, []string{existing}, env.users.get(user.ID).Tokens)
	assert.Equal(t, calls, env.users.addTokenCalls)
}

// racingUsers makes the targeted updates fail as if another request got there first
type racingUsers struct {
	*mockUserStorage
}

func (r racingUsers) MarkVerified(ctx context.Context, userID, emailToken string) error {
	return storage.ErrUserNotFound
}

func (r racingUsers) SetEmailToken(ctx context.Context, userID, emailToken string) error {
	return storage.ErrUserNotFound
}

func TestAuthHandler_VerifyEmail_TokenConsumedConcurrently(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", false)
	env.handler = NewAuthHandler(setupTestLogger(), racingUsers{env.users}, env.codec, env.hasher,
		env.emailTokens, env.mailer, AuthConfig{SessionTTL: time.Hour})

	w := httptest.NewRecorder()
	env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+user.EmailToken, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, api.CategoryUnauthenticated, decodeError(t, w).Error)
}

func TestAuthHandler_ResendVerification_VerifiedConcurrently(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "john@example.com", "secret", false)
	env.handler = NewAuthHandler(setupTestLogger(), racingUsers{env.users}, env.codec, env.hasher,
		env.emailTokens, env.mailer, AuthConfig{SessionTTL: time.Hour})

	w := httptest.NewRecorder()
	env.handler.ResendVerification(w, newJSONRequest(t, http.MethodPost, "/user/verify-email/resend",
		api.ResendVerificationRequest{Email: "john@example.com"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.mailer.sent)
}

func TestAuthHandler_VerifyEmail_KeepsAdminFlag(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "john@example.com", "secret", false)
	pending := user.EmailToken

	// promotion lands after the handler could have read the row
	stored := env.users.get(user.ID)
	stored.Admin = true
	env.users.put(stored)

	w := httptest.NewRecorder()
	env.handler.VerifyEmail(w, httptest.NewRequest(http.MethodGet, "/user/verify-email?token="+pending, nil))

	require.Equal(t, http.StatusOK, w.Code)
	got := env.users.get(user.ID)
	assert.True(t, got.IsVerified)
	assert.True(t, got.Admin)
}
