package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/neudev/attemptd/internal/config"
)

// NewSQLite opens (creating if needed) the on-device SQLite database.
func NewSQLite(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	if cfg.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	log.Info().
		Str("path", cfg.SQLitePath).
		Msg("SQLite opened")

	return db, nil
}
