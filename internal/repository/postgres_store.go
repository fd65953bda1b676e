package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neudev/attemptd/internal/model"
)

// PostgresStore keeps records in the attempt_sessions table (see migrations/).
// Used when several lab machines share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context, key model.SessionKey) (*model.SessionRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM attempt_sessions
		 WHERE user_namespace = $1 AND activity_id = $2`,
		key.Namespace, key.ActivityID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt session: %w", err)
	}
	return decodeRecord(data)
}

func (s *PostgresStore) Save(ctx context.Context, key model.SessionKey, rec *model.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempt_sessions (user_namespace, activity_id, record, end_time)
		 VALUES ($1, $2, $3, to_timestamp($4::float8 / 1000))
		 ON CONFLICT (user_namespace, activity_id) DO UPDATE
		 SET record = EXCLUDED.record, end_time = EXCLUDED.end_time, updated_at = NOW()`,
		key.Namespace, key.ActivityID, data, rec.EndTime,
	)
	if err != nil {
		return fmt.Errorf("upsert attempt session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, key model.SessionKey) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM attempt_sessions WHERE user_namespace = $1 AND activity_id = $2`,
		key.Namespace, key.ActivityID,
	)
	if err != nil {
		return fmt.Errorf("delete attempt session: %w", err)
	}
	return nil
}
