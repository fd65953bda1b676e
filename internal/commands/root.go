// Package commands implements the attempt CLI.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var tokenFlag string

var rootCmd = &cobra.Command{
	Use:   "attempt",
	Short: "Take a timed coding activity from the terminal",
	Long: `attempt runs a timed coding activity locally: it keeps the countdown,
saves progress on this device and submits automatically when time runs out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("attempt %s (%s, %s)\n", version, commit, date)
	},
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "backend access token (defaults to $ACCESS_TOKEN)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(versionCmd)
}

// cliEnv is what every subcommand needs before touching an attempt.
type cliEnv struct {
	cfg        *config.Config
	log        zerolog.Logger
	identity   auth.Identity
	activityID int64
	closeLog   func()
}

// setup loads config, opens the log file and resolves the caller.
func setup(activityArg string) (*cliEnv, error) {
	activityID, err := strconv.ParseInt(activityArg, 10, 64)
	if err != nil || activityID <= 0 {
		return nil, fmt.Errorf("invalid activity id %q", activityArg)
	}

	cfg := config.Load()
	log, closeLog, err := fileLogger(cfg)
	if err != nil {
		return nil, err
	}

	token, err := resolveToken(tokenFlag)
	if err != nil {
		closeLog()
		return nil, err
	}
	id, err := auth.FromToken(token, cfg.JWTSecret)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("access token: %w", err)
	}

	return &cliEnv{cfg: cfg, log: log, identity: id, activityID: activityID, closeLog: closeLog}, nil
}

// fileLogger writes logs next to the local store so they do not tear the view.
func fileLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	dir := filepath.Dir(cfg.SQLitePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "attempt.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return logger.SetupWriter(f, cfg.LogLevel, "json"), func() { _ = f.Close() }, nil
}
