// Package server wires storage, token codecs, mail delivery and HTTP
// handlers into a runnable accounts service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/iudanet/accounts/internal/config"
	"github.com/iudanet/accounts/internal/crypto"
	"github.com/iudanet/accounts/internal/mail"
	"github.com/iudanet/accounts/internal/server/handlers"
	"github.com/iudanet/accounts/internal/server/middleware"
	"github.com/iudanet/accounts/internal/server/storage"
	"github.com/iudanet/accounts/internal/server/storage/boltdb"
	"github.com/iudanet/accounts/internal/server/storage/sqlite"
	"github.com/iudanet/accounts/internal/token"
)

// Route paths
const (
	PathSignup      = "/user/signup"
	PathVerifyEmail = "/user/verify-email"
	PathResend      = "/user/verify-email/resend"
	PathLogin       = "/user/login"
	PathLogout      = "/user/logout"
	PathDump        = "/user/dump"
	PathHome        = "/home/index"
	PathHealth      = "/api/v1/health"
)

// Store is a user storage backend owned by the server
type Store interface {
	storage.UserStorage
	Close() error
}

// OpenStorage opens the backend selected by cfg.Driver
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverBolt:
		s, err := boltdb.New(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

type options struct {
	sender  mail.Sender
	store   Store
	version string
}

// Option customizes New
type Option func(*options)

// WithMailSender replaces the sender chosen from the SMTP config
func WithMailSender(sender mail.Sender) Option {
	return func(o *options) { o.sender = sender }
}

// WithStore uses an already opened backend instead of opening one from config.
// The server takes ownership and closes it.
func WithStore(store Store) Option {
	return func(o *options) { o.store = store }
}

// WithVersion sets the version reported by the health endpoint
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// Server is the accounts HTTP service
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    Store
	handler  http.Handler
	limiters []*middleware.RateLimiter
}

// New builds the service from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	codec, err := token.NewCodec(cfg.Token.Secret, cfg.Token.Cipher)
	if err != nil {
		return nil, fmt.Errorf("failed to create session codec: %w", err)
	}

	emailTokens, err := token.NewEmailTokens(cfg.Token.Secret, cfg.Verification.EmailTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to create email token issuer: %w", err)
	}

	sender := o.sender
	if sender == nil {
		if cfg.SMTP.Enabled() {
			sender = mail.NewSMTPSender(cfg.SMTP)
		} else {
			logger.Warn("SMTP host not configured, verification emails are written to the log")
			sender = mail.NewLogSender(logger)
		}
	}

	mailer, err := mail.NewMailer(sender, cfg.Verification.LinkBaseURL, cfg.SMTP.FromName)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = OpenStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}

	authHandler := handlers.NewAuthHandler(
		logger,
		store,
		codec,
		crypto.NewPasswordHasher(cfg.Password.BcryptCost),
		emailTokens,
		mailer,
		handlers.AuthConfig{
			SessionTTL:  cfg.Token.TTL,
			PurgeOnDump: cfg.Admin.PurgeOnDump,
		},
	)
	healthHandler := handlers.NewHealthHandler(logger, store, o.version)

	s.handler = s.routes(authHandler, healthHandler, codec)

	logger.Info("Server initialized",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("cipher", cfg.Token.Cipher),
		slog.Bool("smtp", cfg.SMTP.Enabled()),
		slog.Duration("email_token_ttl", emailTokens.TTL()),
	)

	return s, nil
}

func (s *Server) routes(auth *handlers.AuthHandler, health *handlers.HealthHandler, codec middleware.TokenVerifier) http.Handler {
	authenticate := middleware.Authenticate(s.logger, codec, s.store)
	requireVerified := middleware.RequireVerified(s.logger, s.store)
	requireAdmin := middleware.RequireAdmin(s.logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST "+PathSignup, auth.Register)
	mux.HandleFunc("GET "+PathVerifyEmail, auth.VerifyEmail)

	var resend http.Handler = http.HandlerFunc(auth.ResendVerification)
	if !s.cfg.RateLimit.Disabled {
		resend = middleware.RateLimitMiddleware(s.newLimiter(s.cfg.RateLimit.Resend), s.logger)(resend)
	}
	mux.Handle("POST "+PathResend, resend)

	mux.Handle("POST "+PathLogin, requireVerified(http.HandlerFunc(auth.Login)))

	logout := authenticate(http.HandlerFunc(auth.Logout))
	mux.Handle("GET "+PathLogout, logout)
	mux.Handle("POST "+PathLogout, logout)

	mux.Handle("GET "+PathDump, authenticate(requireAdmin(http.HandlerFunc(auth.Dump))))
	mux.Handle("GET "+PathHome, authenticate(http.HandlerFunc(auth.Home)))
	mux.HandleFunc("GET "+PathHealth, health.Health)

	handler := middleware.JSONRouteErrors(mux, s.logger)
	if !s.cfg.RateLimit.Disabled {
		login := s.newLimiter(s.cfg.RateLimit.Login)
		signup := s.newLimiter(s.cfg.RateLimit.Signup)
		handler = middleware.RateLimitByPathMiddleware(map[string]*middleware.RateLimiter{
			PathLogin:  login,
			PathSignup: signup,
		}, s.logger)(handler)
	}

	handler = middleware.LoggingWithSkip(s.logger, []string{PathHealth})(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler
}

func (s *Server) newLimiter(rule config.RateLimitRule) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(rule.Requests, rule.Window, s.logger).
		TrustProxyHeaders(s.cfg.RateLimit.TrustProxyHeaders)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Storage returns the backend the server was built with
func (s *Server) Storage() Store {
	return s.store
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: s.cfg.HTTP.ReadTimeout,
		WriteTimeout:      s.cfg.HTTP.WriteTimeout,
		IdleTimeout:       s.cfg.HTTP.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Close stops the rate limiters and closes storage
func (s *Server) Close() error {
	for _, rl := range s.limiters {
		rl.Stop()
	}
	return s.store.Close()
}
