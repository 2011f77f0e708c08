package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/handlers"
	"github.com/iudanet/accounts/internal/server/storage"
	"github.com/iudanet/accounts/pkg/api"
)

// AccessTokenParam is the query parameter accepted when no Authorization header is sent
const AccessTokenParam = "access_token"

// maxGateBody bounds the login body buffered by RequireVerified
const maxGateBody = 1 << 20

const msgUnauthorized = "invalid or expired token"

// TokenVerifier decodes a session token and checks its expiry
type TokenVerifier interface {
	Verify(token string) (string, time.Time, error)
}

// UserByID loads an account with its sessions
type UserByID interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// UserByEmail loads an account by email
type UserByEmail interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ExtractToken returns the bearer token of r, falling back to the
// access_token query parameter
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get(AccessTokenParam)
}

// Authenticate resolves the session token to an account and attaches a
// handlers.Session to the request context. Decode errors, expiry, unknown
// users and revoked tokens all answer 401 with the same message.
func Authenticate(logger *slog.Logger, verifier TokenVerifier, users UserByID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := ExtractToken(r)
			if token == "" {
				logger.WarnContext(ctx, "Missing access token")
				handlers.WriteError(w, logger, "missing access token", http.StatusUnauthorized)
				return
			}

			userID, _, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "Invalid access token", slog.Any("error", err))
				handlers.WriteError(w, logger, msgUnauthorized, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByID(ctx, userID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					logger.WarnContext(ctx, "Token for unknown user", slog.String("user_id", userID))
					handlers.WriteError(w, logger, msgUnauthorized, http.StatusUnauthorized)
					return
				}
				logger.ErrorContext(ctx, "Failed to load user", slog.Any("error", err))
				handlers.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
				return
			}

			if !user.HasToken(token) {
				logger.WarnContext(ctx, "Revoked access token", slog.String("user_id", userID))
				handlers.WriteError(w, logger, msgUnauthorized, http.StatusUnauthorized)
				return
			}

			logger.DebugContext(ctx, "User authenticated", slog.String("user_id", user.ID))

			ctx = handlers.WithSession(ctx, &handlers.Session{User: user, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVerified rejects logins of accounts whose email is not verified.
// The body is read and restored for the next handler; requests it cannot
// judge (bad JSON, missing email, unknown user) are passed through so the
// login handler answers them.
func RequireVerified(logger *slog.Logger, users UserByEmail) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxGateBody))
			if err != nil {
				handlers.WriteError(w, logger, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req api.LoginRequest
			if err := json.Unmarshal(body, &req); err != nil || req.Email == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByEmail(ctx, req.Email)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				logger.ErrorContext(ctx, "Failed to load user", slog.Any("error", err))
				handlers.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
				return
			}

			if !user.IsVerified {
				logger.WarnContext(ctx, "Login of unverified account", slog.String("user_id", user.ID))
				handlers.WriteError(w, logger, "email not verified", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after Authenticate
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := handlers.SessionFromContext(r.Context())
			if !ok {
				handlers.WriteError(w, logger, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !sess.User.Admin {
				logger.WarnContext(r.Context(), "Admin access denied", slog.String("user_id", sess.User.ID))
				handlers.WriteError(w, logger, "admin access required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
