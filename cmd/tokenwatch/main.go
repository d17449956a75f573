package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenWatch/internal/storage"
	"tokenWatch/internal/storage/postgres"
	"tokenWatch/internal/storage/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:          "tokenwatch",
		Short:        "Token price monitor and alerting service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSeedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "postgres", "storage backend (postgres, sqlite)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("sqlite-path", "./data/tokenwatch.db", "SQLite database file")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func openStore(ctx context.Context, kind, dsn, sqlitePath string, logger *zap.Logger) (storage.Store, error) {
	switch kind {
	case "postgres":
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("postgres store ready", zap.String("dsn", redactDSN(dsn)))
		return store, nil
	case "sqlite":
		store, err := sqlite.NewStore(ctx, sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("sqlite store ready", zap.String("path", sqlitePath))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
