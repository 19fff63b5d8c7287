package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Kamar-Folarin/repo-autosync/internal/api"
	"github.com/Kamar-Folarin/repo-autosync/internal/commitmsg"
	"github.com/Kamar-Folarin/repo-autosync/internal/config"
	"github.com/Kamar-Folarin/repo-autosync/internal/db"
	"github.com/Kamar-Folarin/repo-autosync/internal/eventbus"
	"github.com/Kamar-Folarin/repo-autosync/internal/gateway"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
	"github.com/Kamar-Folarin/repo-autosync/internal/orchestrator"
	"github.com/Kamar-Folarin/repo-autosync/internal/scanner"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repo-autosync",
		Short:         "Keep local folders synchronized with hosted Git repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addCommonFlags(root.PersistentFlags())

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and resume every saved project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Flags())
		},
	}
	serve.Flags().String("port", "", "HTTP listen port")
	serve.Flags().Int("debounce-seconds", 0, "quiet period before an automatic sync")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Flags())
		},
	}

	root.AddCommand(serve, migrate)
	// serve is the default
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("db-connection-string", "", "PostgreSQL connection string")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file with rotation")
}

// setup loads configuration and builds the logger shared by every command
func setup(flags *pflag.FlagSet) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadWithFlags(changedFlags(flags))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	if cfg.LogFile != "" {
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}))
	}

	if cfg.DBConnectionString == "" {
		return nil, nil, fmt.Errorf("missing required configuration (DB_CONNECTION_STRING must be set)")
	}
	return cfg, logger, nil
}

// changedFlags keeps only flags set on the command line so unset flags do
// not shadow the environment.
func changedFlags(flags *pflag.FlagSet) *pflag.FlagSet {
	set := pflag.NewFlagSet("changed", pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) {
		set.AddFlag(f)
	})
	return set
}

func openStore(cfg *config.Config, logger *logrus.Logger) (*db.PostgresStore, error) {
	store, err := db.NewPostgresStore(cfg.DBConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run migrations with retry logic
	if err := retry(cfg.MigrationRetries, 5*time.Second, func() error {
		err := store.Migrate()
		if err != nil {
			logger.WithError(err).WithField("action", "migrate").Warn("Migration attempt failed")
		}
		return err
	}); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations after retries: %w", err)
	}
	return store, nil
}

func runMigrate(flags *pflag.FlagSet) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Migration failed")
		return err
	}
	defer store.Close()
	logger.WithField("action", "migrate").Info("Database is up to date")
	return nil
}

func runServe(flags *pflag.FlagSet) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to prepare database")
		return err
	}
	defer store.Close()

	// Initialize services
	bus := eventbus.New(logger, cfg.Sync.EventBacklog)
	repos := gateway.New(logger, gateway.NewGitHubHosting(cfg.GitHub, logger), cfg.Sync)
	orch := orchestrator.New(store, repos, scanner.New(logger), bus, logger,
		orchestrator.WithDebounce(cfg.Sync.DebounceWindow),
		orchestrator.WithCommitMessages(commitmsg.New(cfg.Sync.AnthropicAPIKey, cfg.Sync.AIModel, logger)),
		orchestrator.WithBootstrapToken(cfg.GitHubToken),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orch.Restore(ctx); err != nil {
		logger.WithError(err).Error("Failed to restore projects")
		return err
	}

	handler := api.NewHandler(orch, bus, logger, api.WithHealthCheck(func(ctx context.Context) (map[models.LifecycleStatus]int, error) {
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return orch.Status(), nil
	}))

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + strings.TrimPrefix(cfg.Port, ":"),
		Handler:      api.SetupRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.WithError(err).Error("Server failed")
	}

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// streams end once the bus closes, so close it before waiting on the server
	bus.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Projects did not stop cleanly")
	}
	logger.Info("Server exited properly")
	return nil
}

// retry retries a function up to a certain number of attempts with a delay between attempts
func retry(attempts int, sleep time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		if attempts--; attempts > 0 {
			time.Sleep(sleep)
			return retry(attempts, sleep, fn)
		}
		return err
	}
	return nil
}
