package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/neudev/attemptd/internal/model"
)

const (
	StateIdle       = model.SubmitStateIdle
	StateSubmitting = model.SubmitStateSubmitting
	StateSubmitted  = model.SubmitStateSubmitted
)

// Trigger names what asked for the attempt to be finalized.
type Trigger string

const (
	TriggerExpiry   Trigger = "expiry"
	TriggerUser     Trigger = "user"
	TriggerTeardown Trigger = "teardown"
)

var (
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrAlreadyFinalizing = errors.New("attempt submission in progress")
	ErrNoItems           = errors.New("activity has no items to submit")
	ErrNotStarted        = errors.New("attempt not started")
)

// Outcome summarises a finalized attempt.
type Outcome struct {
	Trigger         Trigger                `json:"trigger"`
	FinalScore      float64                `json:"final_score"`
	ScoreFromServer bool                   `json:"score_from_server"`
	MaxPoints       int                    `json:"max_points"`
	Rank            *int                   `json:"rank,omitempty"`
	PassedTestCases int                    `json:"passed_test_cases"`
	TotalTestCases  int                    `json:"total_test_cases"`
	TimeTaken       int64                  `json:"time_taken"`
	Submissions     []model.ItemSubmission `json:"submissions"`
}

// BuildPayload assembles the per-item submission from a stopped snapshot. The
// total time spent is clamped to the attempt window.
func BuildPayload(snap *model.SessionRecord, a *model.Activity) (model.SubmissionPayload, error) {
	if len(a.Items) == 0 {
		return model.SubmissionPayload{}, ErrNoItems
	}

	code, err := json.Marshal(snap.Files)
	if err != nil {
		return model.SubmissionPayload{}, fmt.Errorf("encode files: %w", err)
	}

	subs := make([]model.ItemSubmission, 0, len(a.Items))
	for _, it := range a.Items {
		subs = append(subs, model.ItemSubmission{
			ItemID:         it.ItemID,
			CodeSubmission: string(code),
			Score:          ItemScore(snap, it),
			TimeSpent:      snap.ItemTimes[it.ItemID].Accumulated,
		})
	}

	clampTimeSpent(subs, attemptWindow(snap))
	return model.SubmissionPayload{Submissions: subs}, nil
}

func attemptWindow(rec *model.SessionRecord) int64 {
	w := floorDiv(rec.EndTime-rec.StartTime, 1000)
	if w < 0 {
		return 0
	}
	return w
}

// clampTimeSpent trims the largest entries first until the sum fits limit.
func clampTimeSpent(subs []model.ItemSubmission, limit int64) {
	var total int64
	for _, s := range subs {
		total += s.TimeSpent
	}
	excess := total - limit
	if excess <= 0 {
		return
	}

	order := make([]int, len(subs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return subs[order[i]].TimeSpent > subs[order[j]].TimeSpent
	})
	for _, i := range order {
		if excess == 0 {
			break
		}
		cut := subs[i].TimeSpent
		if cut > excess {
			cut = excess
		}
		subs[i].TimeSpent -= cut
		excess -= cut
	}
}

// Finish is the user trigger: the attempt is submitted now.
func (m *Manager) Finish(ctx context.Context) (*Outcome, error) {
	return m.finalize(ctx, TriggerUser)
}

// finalize submits the attempt at most once. The state moves idle → submitting
// under the lock, so concurrent triggers collapse into one submission.
func (m *Manager) finalize(ctx context.Context, trigger Trigger) (*Outcome, error) {
	// The submission must outlive the caller (a closing UI or a stopped ticker).
	ctx = context.WithoutCancel(ctx)
	log := m.log.With().Str("trigger", string(trigger)).Logger()

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil, ErrNotStarted
	}
	switch m.state {
	case StateSubmitted:
		m.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case StateSubmitting:
		m.mu.Unlock()
		return nil, ErrAlreadyFinalizing
	}

	now := m.now()
	snap := SnapshotAndStop(m.rec, now)
	payload, err := BuildPayload(snap, m.activity)
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		log.Warn().Err(err).Msg("Nothing to submit")
		m.emit(Event{Type: EventSubmitFailed, State: StateIdle, Error: err.Error()})
		return nil, err
	}

	m.state = StateSubmitting
	m.settled = make(chan struct{})
	outcome := m.localOutcome(snap, trigger, now)
	outcome.Submissions = payload.Submissions
	m.mu.Unlock()

	m.emit(Event{Type: EventStateChanged, State: StateSubmitting})
	log.Info().Int("items", len(payload.Submissions)).Msg("Submitting attempt")

	res, err := m.backend.FinalizeSubmission(ctx, m.key.ActivityID, payload)

	m.mu.Lock()
	if err != nil {
		m.state = StateIdle
		m.lastErr = err
		m.settleLocked()
		m.mu.Unlock()

		log.Error().Err(err).Msg("Attempt submission failed")
		m.emit(Event{Type: EventSubmitFailed, State: StateIdle, Error: err.Error()})
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	if res != nil {
		if res.FinalScore != nil {
			outcome.FinalScore = *res.FinalScore
			outcome.ScoreFromServer = true
		}
		outcome.Rank = res.Rank
	}
	m.state = StateSubmitted
	m.rec = snap
	m.outcome = outcome
	m.lastErr = nil
	m.stopTimersLocked()
	if err := m.store.Clear(ctx, m.key); err != nil {
		log.Warn().Err(err).Msg("Purge local attempt failed")
	}
	m.mu.Unlock()

	// No draft may be written after the clear, so wait out any in-flight save.
	release := m.progress.Barrier()
	if err := m.backend.ClearProgress(ctx, m.key.ActivityID); err != nil {
		log.Warn().Err(err).Msg("Clear server progress failed")
	}
	release()

	m.mu.Lock()
	m.settleLocked()
	m.mu.Unlock()

	log.Info().
		Float64("final_score", outcome.FinalScore).
		Bool("score_from_server", outcome.ScoreFromServer).
		Msg("Attempt submitted")
	m.emit(Event{Type: EventSubmitted, State: StateSubmitted, Outcome: outcome})
	return outcome, nil
}

func (m *Manager) settleLocked() {
	if m.settled != nil {
		close(m.settled)
		m.settled = nil
	}
}

func (m *Manager) localOutcome(snap *model.SessionRecord, trigger Trigger, now time.Time) *Outcome {
	passed, total := PassCount(snap, m.activity)
	taken := floorDiv(now.UnixMilli()-snap.StartTime, 1000)
	if w := attemptWindow(snap); taken > w {
		taken = w
	}
	return &Outcome{
		Trigger:         trigger,
		FinalScore:      float64(DraftScore(snap, m.activity)),
		MaxPoints:       m.activity.MaxPoints,
		PassedTestCases: passed,
		TotalTestCases:  total,
		TimeTaken:       taken,
	}
}
