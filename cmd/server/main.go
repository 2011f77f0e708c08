package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/accounts/internal/config"
	"github.com/iudanet/accounts/internal/logging"
	"github.com/iudanet/accounts/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	promote := flag.String("promote", "", "Grant admin rights to the account with this email and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *promote != "" {
		err = promoteAdmin(ctx, cfg, *promote)
	} else {
		err = serve(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("fatal", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	srv, err := server.New(ctx, cfg, logger, server.WithVersion(Version))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("failed to close server", slog.Any("error", err))
		}
	}()

	logger.Info("accounts server starting",
		slog.String("version", Version),
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("storage", cfg.Storage.Driver))

	return srv.Run(ctx)
}

func promoteAdmin(ctx context.Context, cfg *config.Config, email string) error {
	store, err := server.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := server.PromoteAdmin(ctx, store, email)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s) is now an admin\n", user.Email, user.ID)
	return nil
}

func printVersion() {
	fmt.Printf("Accounts Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
