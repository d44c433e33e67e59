package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/remoteprint/remoteprint/internal/model"
	"github.com/remoteprint/remoteprint/internal/repository"
	"github.com/remoteprint/remoteprint/internal/service"
)

// backend is the slice of the service layer printctl drives.
type backend interface {
	ResetMonthly(ctx context.Context) (*service.ResetResult, error)
	CreateAccount(ctx context.Context, input service.CreateAccountInput) (*model.Account, error)
	CreateAPIKey(ctx context.Context, accountID string, input service.CreateAPIKeyInput) (*service.CreatedAPIKey, error)
	Close()
}

// opener connects a backend for commands that need the database.
type opener func(ctx context.Context, databaseURL string, logger *slog.Logger) (backend, error)

type app struct {
	v      *viper.Viper
	open   opener
	logger *slog.Logger
}

func newRootCmd(open opener) *cobra.Command {
	a := &app{v: viper.New(), open: open}

	rootCmd := &cobra.Command{
		Use:           "printctl",
		Short:         "Operator tooling for remoteprint",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.v.GetString("log_level"))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL connection string (env DATABASE_URL)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error (env LOG_LEVEL)")

	_ = a.v.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindEnv("database_url", "DATABASE_URL")
	_ = a.v.BindEnv("log_level", "LOG_LEVEL")

	rootCmd.AddCommand(
		newResetMonthlyCmd(a),
		newCreateAccountCmd(a),
		newCreateKeyCmd(a),
		newHashTokenCmd(),
	)

	return rootCmd
}

// withBackend opens the database for the duration of fn.
func (a *app) withBackend(ctx context.Context, fn func(backend) error) error {
	databaseURL := a.v.GetString("database_url")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	b, err := a.open(ctx, databaseURL, a.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(b)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// services adapts the repository-backed services to backend.
type services struct {
	repo     *repository.Repository
	reset    *service.ResetService
	accounts *service.AccountService
}

func openBackend(ctx context.Context, databaseURL string, logger *slog.Logger) (backend, error) {
	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &services{
		repo:     repo,
		reset:    service.NewResetService(repo, logger, nil),
		accounts: service.NewAccountService(repo, repo, repo, repo, nil, logger),
	}, nil
}

func (s *services) ResetMonthly(ctx context.Context) (*service.ResetResult, error) {
	return s.reset.Run(ctx)
}

func (s *services) CreateAccount(ctx context.Context, input service.CreateAccountInput) (*model.Account, error) {
	return s.accounts.CreateAccount(ctx, input)
}

func (s *services) CreateAPIKey(ctx context.Context, accountID string, input service.CreateAPIKeyInput) (*service.CreatedAPIKey, error) {
	return s.accounts.CreateAPIKey(ctx, accountID, input)
}

func (s *services) Close() {
	s.repo.Close()
}
