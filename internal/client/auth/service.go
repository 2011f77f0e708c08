// Package auth drives the account operations of the CLI and keeps the
// local session in sync with the server.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/accounts/internal/client/api"
	"github.com/iudanet/accounts/internal/client/storage"
	"github.com/iudanet/accounts/internal/validation"
	pkgapi "github.com/iudanet/accounts/pkg/api"
)

// ErrNotAuthenticated means there is no usable local session
var ErrNotAuthenticated = errors.New("not authenticated")

// Service implements the CLI account flows
type Service struct {
	apiClient *api.Client
	sessions  storage.SessionStorage
	logger    *slog.Logger
	now       func() time.Time
	serverURL string
}

// NewService creates the service. serverURL is recorded in saved sessions
// so a session is never replayed against another server.
func NewService(apiClient *api.Client, sessions storage.SessionStorage, serverURL string, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
		serverURL: serverURL,
	}
}

// Register validates the request locally and creates the account
func (s *Service) Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error) {
	if err := validation.ValidateRegister(req); err != nil {
		return nil, fmt.Errorf("invalid registration: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return resp, nil
}

// VerifyEmail submits the token received by email
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("verification token is required")
	}

	if _, err := s.apiClient.VerifyEmail(ctx, token); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	return nil
}

// ResendVerification requests a fresh verification email
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	if err := validation.ValidateResend(pkgapi.ResendVerificationRequest{Email: email}); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}

	if _, err := s.apiClient.ResendVerification(ctx, email); err != nil {
		return fmt.Errorf("resend failed: %w", err)
	}
	return nil
}

// Login opens a session and stores it locally, replacing any previous one
func (s *Service) Login(ctx context.Context, email, password string) (*storage.Session, error) {
	req := pkgapi.LoginRequest{Email: email, Password: password}
	if err := validation.ValidateLogin(req); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.Session{
		Email:     email,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		ServerURL: s.serverURL,
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Logout revokes the session on the server and always forgets it locally.
// A server that cannot be reached only produces a warning.
func (s *Service) Logout(ctx context.Context) error {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if logoutErr := s.apiClient.Logout(ctx, session.Token); logoutErr != nil {
		if api.StatusCode(logoutErr) == http.StatusUnauthorized {
			s.logger.Debug("session already invalid on server", slog.Any("error", logoutErr))
		} else {
			s.logger.Warn("failed to logout on server", slog.Any("error", logoutErr))
		}
	}

	if err := s.sessions.DeleteSession(ctx); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}

	return nil
}

// Session returns the stored session if it is still usable
func (s *Service) Session(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.ServerURL != "" && session.ServerURL != s.serverURL {
		return nil, fmt.Errorf("%w: session belongs to %s", ErrNotAuthenticated, session.ServerURL)
	}
	if session.Expired(s.now()) {
		return nil, fmt.Errorf("%w: session expired", ErrNotAuthenticated)
	}

	return session, nil
}

// StoredSession returns the stored session without checking it
func (s *Service) StoredSession(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, ErrNotAuthenticated
	}
	return session, err
}

// Home fetches the greeting for the current session
func (s *Service) Home(ctx context.Context) (string, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return "", err
	}

	resp, err := s.apiClient.Home(ctx, session.Token)
	if err != nil {
		return "", s.sessionError(ctx, err)
	}
	return resp.Msg, nil
}

// Dump fetches the admin account listing
func (s *Service) Dump(ctx context.Context) (*pkgapi.DumpResponse, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Dump(ctx, session.Token)
	if err != nil {
		return nil, s.sessionError(ctx, err)
	}
	return resp, nil
}

// sessionError drops a session the server no longer accepts
func (s *Service) sessionError(ctx context.Context, err error) error {
	if api.StatusCode(err) != http.StatusUnauthorized {
		return err
	}

	if delErr := s.sessions.DeleteSession(ctx); delErr != nil && !errors.Is(delErr, storage.ErrSessionNotFound) {
		s.logger.Warn("failed to delete rejected session", slog.Any("error", delErr))
	}
	return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
}

// ServerStatus reports the server health
func (s *Service) ServerStatus(ctx context.Context) (*pkgapi.HealthResponse, error) {
	return s.apiClient.Health(ctx)
}
