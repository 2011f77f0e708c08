package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/accounts/internal/client/api"
	"github.com/iudanet/accounts/internal/client/auth"
	"github.com/iudanet/accounts/internal/client/cli"
	"github.com/iudanet/accounts/internal/client/iocli"
	"github.com/iudanet/accounts/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "accounts-client.db", "Path to local session database")
	password := flag.String("password", "", "Password (not recommended, use env var or file)")
	passwordFile := flag.String("password-file", "", "Path to file containing password")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = func() { cli.PrintUsage(os.Stderr) }

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := run(ctx, logger, *serverURL, *dbPath, cli.Passwords{FromFile: *passwordFile, FromArgs: *password}, args); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	stop()
}

func run(ctx context.Context, logger *slog.Logger, serverURL, dbPath string, passwords cli.Passwords, args []string) error {
	sessions, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(api.NewClient(serverURL), sessions, serverURL, logger)
	app := cli.New(iocli.NewStdio(), authService, passwords)

	return app.Run(ctx, args[0], args[1:])
}

func printVersion() {
	fmt.Printf("Accounts Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
