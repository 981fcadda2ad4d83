package main

import (
	"fmt"
	"os"

	"github.com/promovista/app/internal/db"
	"github.com/promovista/app/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateDatabaseURL string

// migrateCmd applies the embedded store_profiles migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the postgres profile store",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateDatabaseURL
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL environment variable or --database-url is required")
		}

		level := os.Getenv("LOG_LEVEL")
		if verbose {
			level = "debug"
		}
		log, err := logging.New(logging.Config{Level: level, Dev: true})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		database, err := db.Open(cmd.Context(), dsn, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := db.Migrate(database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, err := db.Version(database)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		log.Info("migrations applied", zap.Int64("version", version))
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "postgres connection string (overrides DATABASE_URL)")
}
