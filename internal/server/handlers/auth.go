package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/accounts/internal/models"
	"github.com/iudanet/accounts/internal/server/storage"
	"github.com/iudanet/accounts/internal/validation"
	"github.com/iudanet/accounts/pkg/api"
)

const msgInternalError = "internal server error"

// AuthConfig holds the immutable settings the account handlers need
type AuthConfig struct {
	SessionTTL  time.Duration
	PurgeOnDump bool
}

// AuthHandler serves the account lifecycle: signup, email verification,
// login, logout and the admin listing
type AuthHandler struct {
	logger      *slog.Logger
	users       storage.UserStorage
	codec       SessionCodec
	hasher      PasswordHasher
	emailTokens EmailTokenIssuer
	mailer      VerificationMailer
	cfg         AuthConfig
}

// NewAuthHandler creates the account handler
func NewAuthHandler(
	logger *slog.Logger,
	users storage.UserStorage,
	codec SessionCodec,
	hasher PasswordHasher,
	emailTokens EmailTokenIssuer,
	mailer VerificationMailer,
	cfg AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		users:       users,
		codec:       codec,
		hasher:      hasher,
		emailTokens: emailTokens,
		mailer:      mailer,
		cfg:         cfg,
	}
}

// Register handles POST /user/signup
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateRegister(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	emailToken, err := h.emailTokens.Issue(req.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue email token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: passwordHash,
		EmailToken:   emailToken,
		Tokens:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("email", req.Email))
			h.sendError(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendVerification(ctx, user.Email, user.FullName(), emailToken); err != nil {
		h.logger.ErrorContext(ctx, "failed to send verification email, rolling back signup",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		if delErr := h.users.DeleteUser(ctx, user.ID); delErr != nil {
			h.logger.ErrorContext(ctx, "failed to roll back signup",
				slog.String("user_id", user.ID),
				slog.Any("error", delErr))
		}
		h.sendError(w, "failed to send verification email", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("email", user.Email),
		slog.String("user_id", user.ID))

	h.sendJSON(w, api.RegisterResponse{
		UserID:  user.ID,
		Message: "User registered, check your email to verify the account",
	}, http.StatusCreated)
}

// VerifyEmail handles GET /user/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		h.sendError(w, "verification token is required", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetUserByEmailToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "unknown email verification token")
			h.sendError(w, "invalid verification token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to look up email token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.emailTokens.Validate(token, user.Email); err != nil {
		h.logger.WarnContext(ctx, "rejected email verification token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		h.sendError(w, "invalid verification token", http.StatusUnauthorized)
		return
	}

	if err := h.users.MarkVerified(ctx, user.ID, token); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "email verification token already consumed",
				slog.String("user_id", user.ID))
			h.sendError(w, "invalid verification token", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to mark user verified", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	h.sendJSON(w, api.MessageResponse{Message: "Email verified"}, http.StatusOK)
}

// ResendVerification handles POST /user/verify-email/resend
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateResend(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.sendError(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if user.IsVerified {
		h.sendError(w, "email already verified", http.StatusBadRequest)
		return
	}

	emailToken, err := h.emailTokens.Issue(user.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue email token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.users.SetEmailToken(ctx, user.ID, emailToken); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.sendError(w, "email already verified", http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to store email token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.mailer.SendVerification(ctx, user.Email, user.FullName(), emailToken); err != nil {
		h.logger.ErrorContext(ctx, "failed to resend verification email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		h.sendError(w, "failed to send verification email", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Verification email sent"}, http.StatusOK)
}

// Login handles POST /user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateLogin(req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "login attempt for unknown user", slog.String("email", req.Email))
			h.sendError(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	ok, err := h.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compare password",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	if !ok {
		h.logger.WarnContext(ctx, "invalid password", slog.String("user_id", user.ID))
		h.sendError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	if !user.IsVerified {
		h.sendError(w, "email not verified", http.StatusUnauthorized)
		return
	}

	h.pruneSessions(ctx, user)

	token, expiresAt, err := h.codec.Issue(user.ID, h.cfg.SessionTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue session token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	if err := h.users.AddSessionToken(ctx, user.ID, token); err != nil {
		h.logger.ErrorContext(ctx, "failed to save session token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	h.sendJSON(w, api.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		ExpiresIn: int64(h.cfg.SessionTTL / time.Second),
	}, http.StatusOK)
}

// pruneSessions drops tokens that no longer verify. Best effort: failures
// are logged and the login proceeds.
func (h *AuthHandler) pruneSessions(ctx context.Context, user *models.User) {
	for _, tok := range user.Tokens {
		if _, _, err := h.codec.Verify(tok); err == nil {
			continue
		}
		err := h.users.RemoveSessionToken(ctx, user.ID, tok)
		if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
			h.logger.WarnContext(ctx, "failed to prune stale session",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
	}
}

// Logout handles GET|POST /user/logout. Only the token used by this
// request is revoked; other sessions stay valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := SessionFromContext(ctx)
	if !ok || sess.Token == "" {
		h.sendError(w, "not logged in", http.StatusBadRequest)
		return
	}

	err := h.users.RemoveSessionToken(ctx, sess.User.ID, sess.Token)
	if err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		h.logger.ErrorContext(ctx, "failed to remove session token", slog.Any("error", err))
		h.sendError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user logged out", slog.String("user_id", sess.User.ID))
	h.sendJSON(w, api.MessageResponse{Message: "Logged out"}, http.StatusOK)
}

func (h *AuthHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	WriteJSON(w, h.logger, data, statusCode)
}

func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	WriteError(w, h.logger, message, statusCode)
}
