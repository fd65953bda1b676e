package attempt

import (
	"context"
	"errors"
	"sync"

	"github.com/neudev/attemptd/internal/auth"
	"github.com/neudev/attemptd/internal/model"
	"github.com/rs/zerolog"
)

// ErrForeignAttempt is returned when the caller's token does not own the
// attempt registered under its claims.
var ErrForeignAttempt = errors.New("attempt belongs to another session")

// Factory builds the manager of an attempt for the given user.
type Factory func(key model.SessionKey, id auth.Identity) *Manager

// Registry keeps one manager per (user namespace, activity).
type Registry struct {
	mu       sync.Mutex
	managers map[model.SessionKey]*entry
	factory  Factory
	log      zerolog.Logger
}

type entry struct {
	m     *Manager
	owner auth.Identity
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, log zerolog.Logger) *Registry {
	return &Registry{
		managers: make(map[model.SessionKey]*entry),
		factory:  factory,
		log:      log.With().Str("component", "attempt_registry").Logger(),
	}
}

// KeyFor returns the session key of id's attempt on activityID.
func KeyFor(id auth.Identity, activityID int64) model.SessionKey {
	return model.SessionKey{Namespace: id.Namespace(), ActivityID: activityID}
}

// Get returns the manager of an attempt that was already acquired. A caller
// that does not own the attempt sees it as absent.
func (r *Registry) Get(id auth.Identity, activityID int64) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[KeyFor(id, activityID)]
	if !ok || !e.owner.SameUser(id) {
		return nil, false
	}
	return e.m, true
}

// Acquire returns the manager of the attempt, creating it on first use.
func (r *Registry) Acquire(id auth.Identity, activityID int64) (*Manager, error) {
	key := KeyFor(id, activityID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.managers[key]; ok {
		if !e.owner.SameUser(id) {
			r.log.Warn().Int64("activity_id", activityID).Str("user", key.Namespace).Msg("Attempt claimed by another token")
			return nil, ErrForeignAttempt
		}
		return e.m, nil
	}
	m := r.factory(key, id)
	r.managers[key] = &entry{m: m, owner: id}
	r.log.Debug().Int64("activity_id", activityID).Str("user", key.Namespace).Msg("Attempt manager created")
	return m, nil
}

// Release runs the teardown trigger of an attempt and forgets its manager.
// The manager stays registered while a submission is still in flight, so a
// reopen cannot start a second one.
func (r *Registry) Release(ctx context.Context, id auth.Identity, activityID int64) error {
	key := KeyFor(id, activityID)

	r.mu.Lock()
	e, ok := r.managers[key]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if !e.owner.SameUser(id) {
		return ErrForeignAttempt
	}

	err := e.m.Close(ctx)

	r.mu.Lock()
	if cur, ok := r.managers[key]; ok && cur == e && e.m.Settled() {
		delete(r.managers, key)
	}
	r.mu.Unlock()
	return err
}

// Shutdown detaches every manager. Attempts resume from local state on restart.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[model.SessionKey]*entry)
	r.mu.Unlock()

	for _, e := range managers {
		e.m.Detach()
	}
	r.log.Info().Int("attempts", len(managers)).Msg("Attempt managers detached")
}

// Len reports how many attempts are open.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
