package attempt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/neudev/attemptd/internal/compiler"
	"github.com/neudev/attemptd/internal/duration"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/neudev/attemptd/internal/worker"
	"github.com/rs/zerolog"
)

var (
	ErrExpired        = errors.New("attempt time expired")
	ErrUnknownItem    = errors.New("item not found in activity")
	ErrNoItemSelected = errors.New("no item selected")
)

// Backend is the activity server as seen by one user.
type Backend interface {
	FetchActivity(ctx context.Context, activityID int64) (*model.Activity, error)
	FetchProgress(ctx context.Context, activityID int64) (*model.Progress, error)
	SaveProgress(ctx context.Context, activityID int64, p model.Progress) error
	ClearProgress(ctx context.Context, activityID int64) error
	FinalizeSubmission(ctx context.Context, activityID int64, payload model.SubmissionPayload) (*model.FinalizeResult, error)
}

// Runner executes code for RunCode and CheckItem.
type Runner interface {
	Run(ctx context.Context, req compiler.RunRequest) (compiler.RunResult, error)
}

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	Runner       Runner
	TickInterval time.Duration
	PollInterval time.Duration
	SyncInterval time.Duration
	Now          func() time.Time
	Log          zerolog.Logger
}

// View is a read-only copy of the attempt state.
type View struct {
	ActivityID    int64                `json:"activity_id"`
	Started       bool                 `json:"started"`
	Activity      *model.Activity      `json:"activity,omitempty"`
	Record        *model.SessionRecord `json:"record,omitempty"`
	Remaining     int64                `json:"remaining"`
	RemainingText string               `json:"remaining_text"`
	TimeExpired   bool                 `json:"time_expired"`
	State         model.SubmitState    `json:"state"`
	LastError     string               `json:"last_error,omitempty"`
	Outcome       *Outcome             `json:"outcome,omitempty"`
}

// Manager owns the record of one attempt and everything that mutates it:
// the countdown, the server poll, progress sync and the auto-submit coordinator.
type Manager struct {
	key          model.SessionKey
	store        repository.SessionStore
	backend      Backend
	runner       Runner
	now          func() time.Time
	tickInterval time.Duration
	pollInterval time.Duration
	log          zerolog.Logger

	startMu sync.Mutex

	mu        sync.Mutex
	started   bool
	expired   bool
	state     model.SubmitState
	settled   chan struct{} // closed when an in-flight submission ends
	rec       *model.SessionRecord
	activity  *model.Activity
	lastErr   error
	outcome   *Outcome
	runToken  string
	countdown *scheduler
	poller    *scheduler

	progress *worker.ProgressWorker
	ctx      context.Context
	cancel   context.CancelFunc

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// NewManager creates a manager for key. Nothing happens until Start.
func NewManager(key model.SessionKey, store repository.SessionStore, backend Backend, opts Options) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		key:          key,
		store:        store,
		backend:      backend,
		runner:       opts.Runner,
		now:          opts.Now,
		tickInterval: opts.TickInterval,
		pollInterval: opts.PollInterval,
		log: opts.Log.With().
			Str("component", "attempt").
			Int64("activity_id", key.ActivityID).
			Str("user", key.Namespace).
			Logger(),
		state:  StateIdle,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]chan Event),
	}
	m.progress = worker.NewProgressWorker(key.ActivityID, m, backend, opts.SyncInterval, opts.Log)
	return m
}

// Key returns the session key of the attempt.
func (m *Manager) Key() model.SessionKey { return m.key }

// Start opens the attempt: it loads the activity, resumes or creates the local
// record, and starts the countdown, the server poll and progress sync.
// A record whose deadline already passed is submitted right away.
func (m *Manager) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		return nil
	}

	activity, err := m.backend.FetchActivity(ctx, m.key.ActivityID)
	if err != nil {
		return fmt.Errorf("start attempt: %w", err)
	}

	progress, err := m.backend.FetchProgress(ctx, m.key.ActivityID)
	purged := false
	switch {
	case err != nil:
		m.log.Warn().Err(err).Msg("Fetch progress failed, resuming from local state")
	case progress == nil:
		// No attempt on the server: whatever is stored locally is stale.
		if err := m.store.Clear(ctx, m.key); err != nil {
			m.log.Warn().Err(err).Msg("Purge local attempt failed")
		}
		purged = true
	}

	now := m.now()
	local, status := LoadLocal(ctx, m.store, m.key, now, m.log)

	var rec *model.SessionRecord
	switch status {
	case LocalExpired:
		rec = local
	case LocalActive:
		r := Reconcile(local, activity, now)
		rec = r.Record
		m.log.Info().
			Int64("remaining", r.Remaining).
			Bool("duration_changed", r.DurationChanged).
			Bool("tightened", r.Tightened).
			Msg("Resumed attempt")
	default:
		if progress != nil {
			rec = SeedFromProgress(activity, progress, now)
			m.log.Info().Int64("remaining", Remaining(rec, now)).Msg("Attempt restored from server progress")
		} else {
			rec = Initialize(activity, now)
			m.log.Info().Int64("remaining", Remaining(rec, now)).Msg("Attempt started")
		}
	}

	expired := Remaining(rec, now) <= 0
	if !expired && len(activity.Items) > 0 {
		target := activity.Items[0].ItemID
		if rec.SelectedItem != nil {
			if _, ok := activity.ItemByID(*rec.SelectedItem); ok {
				target = *rec.SelectedItem
			}
		}
		if running, ok := RunningItem(rec); !ok || running != target {
			rec = Focus(rec, target, now)
		}
	}
	rec.DraftScore = DraftScore(rec, activity)

	m.mu.Lock()
	m.activity = activity
	m.rec = rec
	m.expired = expired
	m.started = true
	m.persistLocked(ctx)
	if !expired {
		m.countdown = newScheduler(m.tickInterval, m.Tick)
		m.poller = newScheduler(m.pollInterval, func(ctx context.Context, _ time.Time) {
			if err := m.Poll(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn().Err(err).Msg("Poll failed")
			}
		})
	}
	countdown, poller := m.countdown, m.poller
	m.mu.Unlock()

	if purged {
		m.emit(Event{Type: EventPurged, State: StateIdle})
	}
	m.emit(m.stateEvent(EventStateChanged, now))

	if expired {
		m.log.Info().Str("local", status.String()).Msg("Attempt deadline already passed")
		m.emit(Event{Type: EventExpired, RemainingText: formatRemaining(0), State: StateIdle, At: now})
		if _, err := m.finalize(ctx, TriggerExpiry); err != nil {
			m.log.Warn().Err(err).Msg("Auto-submit on open failed")
		}
		return nil
	}

	go countdown.run(m.ctx, m.now)
	go poller.run(m.ctx, m.now)
	go m.progress.Start(m.ctx)
	return nil
}

// Poll re-reads the activity and reconciles the deadline. It also refreshes
// the item list. Submitted or expired attempts are left alone.
func (m *Manager) Poll(ctx context.Context) error {
	m.mu.Lock()
	skip := !m.started || m.expired || m.state == StateSubmitted
	m.mu.Unlock()
	if skip {
		return nil
	}

	activity, err := m.backend.FetchActivity(ctx, m.key.ActivityID)
	if err != nil {
		return fmt.Errorf("poll activity: %w", err)
	}

	now := m.now()
	m.mu.Lock()
	if m.expired || m.state == StateSubmitted {
		m.mu.Unlock()
		return nil
	}
	r := Reconcile(m.rec, activity, now)
	m.activity = activity
	m.rec = r.Record
	m.rec.DraftScore = DraftScore(m.rec, activity)
	m.persistLocked(ctx)
	m.mu.Unlock()

	if r.DurationChanged || r.Tightened {
		m.log.Info().
			Int64("remaining", r.Remaining).
			Bool("duration_changed", r.DurationChanged).
			Msg("Deadline reconciled")
	}
	m.emit(m.stateEvent(EventReconciled, now))

	if r.Remaining <= 0 {
		m.Tick(ctx, now)
	}
	return nil
}

// Close is the teardown trigger: an idle attempt is submitted, then every
// background task stops and subscribers are released. A submission already in
// flight is waited for; if it fails the attempt is submitted again here.
func (m *Manager) Close(ctx context.Context) error {
	for {
		m.mu.Lock()
		started, state, settled := m.started, m.state, m.settled
		m.mu.Unlock()

		if settled != nil {
			select {
			case <-settled:
				continue
			case <-ctx.Done():
				return fmt.Errorf("wait for submission: %w", ctx.Err())
			}
		}

		var err error
		if started && state == StateIdle {
			_, err = m.finalize(ctx, TriggerTeardown)
			if errors.Is(err, ErrAlreadyFinalizing) {
				continue
			}
			if errors.Is(err, ErrAlreadySubmitted) {
				err = nil
			}
		}
		m.Detach()
		return err
	}
}

// Settled reports whether no submission is in flight.
func (m *Manager) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled == nil
}

// Detach stops background work without submitting. The local record stays
// and the attempt resumes on the next Start.
func (m *Manager) Detach() {
	m.mu.Lock()
	m.stopTimersLocked()
	m.mu.Unlock()
	m.cancel()
	m.closeSubscribers()

	if c, ok := m.runner.(io.Closer); ok {
		if err := c.Close(); err != nil {
			m.log.Debug().Err(err).Msg("Runner close failed")
		}
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		ActivityID:  m.key.ActivityID,
		Started:     m.started,
		Activity:    m.activity,
		Record:      m.rec.Clone(),
		TimeExpired: m.expired,
		State:       m.state,
		Outcome:     m.outcome,
	}
	if m.rec != nil {
		v.Remaining = Remaining(m.rec, m.now())
		if v.Remaining < 0 {
			v.Remaining = 0
		}
	}
	v.RemainingText = formatRemaining(v.Remaining)
	if m.lastErr != nil {
		v.LastError = m.lastErr.Error()
	}
	return v
}

// ProgressSnapshot implements worker.ProgressSource.
func (m *Manager) ProgressSnapshot() (model.Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.expired || m.state != StateIdle {
		return model.Progress{}, false
	}
	now := m.now()
	if Remaining(m.rec, now) <= 0 {
		return model.Progress{}, false
	}
	return ProgressFromRecord(m.rec, now), true
}

func (m *Manager) persistLocked(ctx context.Context) {
	if m.state == StateSubmitted {
		return
	}
	if err := m.store.Save(ctx, m.key, m.rec); err != nil {
		m.log.Error().Err(err).Msg("Persist attempt failed")
	}
}

func (m *Manager) stopTimersLocked() {
	if m.countdown != nil {
		m.countdown.Stop()
	}
	if m.poller != nil {
		m.poller.Stop()
	}
}

// writableLocked reports why the record cannot be changed, if it cannot.
func (m *Manager) writableLocked() error {
	switch {
	case !m.started:
		return ErrNotStarted
	case m.state == StateSubmitted:
		return ErrAlreadySubmitted
	case m.state == StateSubmitting:
		return ErrAlreadyFinalizing
	case m.expired || Remaining(m.rec, m.now()) <= 0:
		return ErrExpired
	}
	return nil
}

// mutate applies fn to a copy of the record and commits it when fn succeeds.
func (m *Manager) mutate(ctx context.Context, fn func(rec *model.SessionRecord) error) error {
	m.mu.Lock()
	if err := m.writableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	rec := m.rec.Clone()
	if err := fn(rec); err != nil {
		m.mu.Unlock()
		return err
	}
	rec.DraftScore = DraftScore(rec, m.activity)
	m.rec = rec
	m.persistLocked(ctx)
	m.mu.Unlock()

	m.emit(m.stateEvent(EventStateChanged, m.now()))
	m.progress.Schedule()
	return nil
}

func (m *Manager) stateEvent(t EventType, now time.Time) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := Remaining(m.rec, now)
	if remaining < 0 {
		remaining = 0
	}
	return Event{Type: t, Remaining: remaining, RemainingText: formatRemaining(remaining), State: m.state, At: now}
}

func formatRemaining(seconds int64) string {
	return duration.Format(seconds)
}
