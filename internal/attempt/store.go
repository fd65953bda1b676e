package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/rs/zerolog"
)

// LocalStatus classifies the stored record found when an attempt is opened.
type LocalStatus int

const (
	LocalAbsent LocalStatus = iota
	LocalActive
	LocalExpired
)

func (s LocalStatus) String() string {
	switch s {
	case LocalActive:
		return "active"
	case LocalExpired:
		return "expired"
	default:
		return "absent"
	}
}

// LoadLocal reads the stored record. Missing, unreadable and malformed records
// are all reported as absent.
func LoadLocal(ctx context.Context, store repository.SessionStore, key model.SessionKey, now time.Time, log zerolog.Logger) (*model.SessionRecord, LocalStatus) {
	rec, err := store.Load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrMalformedRecord):
		log.Warn().Err(err).Msg("Ignoring malformed local attempt")
		return nil, LocalAbsent
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, LocalAbsent
	default:
		log.Error().Err(err).Msg("Load local attempt failed")
		return nil, LocalAbsent
	}

	if Remaining(rec, now) <= 0 {
		return rec, LocalExpired
	}
	return rec, LocalActive
}
