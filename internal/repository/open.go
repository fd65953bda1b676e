package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/database"
)

// Open builds the SessionStore selected by cfg.StoreDriver. The returned
// function releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (SessionStore, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemoryStore(), func() {}, nil

	case "sqlite", "":
		db, err := database.NewSQLite(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		store, err := NewSQLiteStore(db)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil

	case "redis":
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb, cfg.StateGrace), func() { _ = rdb.Close() }, nil

	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
