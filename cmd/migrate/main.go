package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/logger"
)

var migrationDir string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema of the attempt session store",
	Long: `migrate applies the attempt_sessions schema used when STORE_DRIVER=postgres.
The sqlite store migrates itself on open and redis needs no schema.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("up: %w", err)
			}
			fmt.Println("Migrated up successfully")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations (drops saved attempts)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("down: %w", err)
			}
			fmt.Println("Migrated down successfully")
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("version: %w", err)
			}
			fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force [version]",
	Short: "Mark a version as applied without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force: %w", err)
			}
			fmt.Printf("Forced version to %d\n", v)
			return nil
		})
	},
}

// withMigrator opens the migrator on DATABASE_URL and closes it after fn.
func withMigrator(fn func(m *migrate.Migrate) error) error {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.StoreDriver != "postgres" {
		log.Warn().Str("store", cfg.StoreDriver).Msg("STORE_DRIVER is not postgres; the daemon will not use this schema")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close migrator failed")
		}
	}()

	return fn(m)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationDir, "path", "migrations", "path to migration files")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
