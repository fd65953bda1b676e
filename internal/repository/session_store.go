package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neudev/attemptd/internal/config"
	"github.com/neudev/attemptd/internal/model"
)

// ErrSessionNotFound is returned by Load when no usable record exists.
// Corrupt records wrap both ErrSessionNotFound and model.ErrMalformedRecord.
var ErrSessionNotFound = errors.New("session record not found")

// SessionStore persists one attempt record per SessionKey.
type SessionStore interface {
	Load(ctx context.Context, key model.SessionKey) (*model.SessionRecord, error)
	// Save overwrites the record. Callers read-merge-write.
	Save(ctx context.Context, key model.SessionKey, rec *model.SessionRecord) error
	// Clear removes the record; clearing an absent record is a no-op.
	Clear(ctx context.Context, key model.SessionKey) error
}

// StorageKey renders the collision-free key of a session.
func StorageKey(key model.SessionKey) string {
	return config.CacheKey.AttemptStateKey(key.Namespace, key.ActivityID)
}

func encodeRecord(rec *model.SessionRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("encode record: %w", model.ErrMalformedRecord)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, model.ErrMalformedRecord)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	rec.Normalize()
	return &rec, nil
}
