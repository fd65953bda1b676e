package attempt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/neudev/attemptd/internal/compiler"
	"github.com/neudev/attemptd/internal/model"
)

var (
	ErrNoRunner     = errors.New("code runner not configured")
	ErrStaleRun     = errors.New("run superseded by a newer one")
	ErrNoActiveFile = errors.New("active file is missing")
)

// CaseResult is the outcome of one test case of a check.
type CaseResult struct {
	TestCaseID int64  `json:"test_case_id"`
	Pass       bool   `json:"pass"`
	Points     int    `json:"points"`
	Output     string `json:"output,omitempty"`
}

// CheckResult is the outcome of CheckItem.
type CheckResult struct {
	ItemID    int64        `json:"item_id"`
	Cases     []CaseResult `json:"cases"`
	Score     int          `json:"score"`
	MaxPoints int          `json:"max_points"`
}

// RunCode runs the active file with input. Only the latest run's result is reported.
func (m *Manager) RunCode(ctx context.Context, input string) (compiler.RunResult, error) {
	m.mu.Lock()
	if err := m.writableLocked(); err != nil {
		m.mu.Unlock()
		return compiler.RunResult{}, err
	}
	if m.runner == nil {
		m.mu.Unlock()
		return compiler.RunResult{}, ErrNoRunner
	}
	f, ok := m.rec.FileByID(m.rec.ActiveFileID)
	if !ok {
		m.mu.Unlock()
		return compiler.RunResult{}, ErrNoActiveFile
	}
	token := uuid.NewString()
	m.runToken = token
	m.mu.Unlock()

	res, err := m.runner.Run(ctx, compiler.RunRequest{Token: token, Language: f.Extension, Code: f.Content, Input: input})
	if err != nil {
		return compiler.RunResult{}, fmt.Errorf("run code: %w", err)
	}
	if !m.currentRun(token) {
		return res, ErrStaleRun
	}

	m.emit(Event{Type: EventRunOutput, Output: res.Output, State: StateIdle})
	return res, nil
}

// CheckItem runs the active file against every test case of the selected item
// and locks the results. Previous results of the item are discarded first.
func (m *Manager) CheckItem(ctx context.Context) (*CheckResult, error) {
	m.mu.Lock()
	if err := m.writableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if m.runner == nil {
		m.mu.Unlock()
		return nil, ErrNoRunner
	}
	if m.rec.SelectedItem == nil {
		m.mu.Unlock()
		return nil, ErrNoItemSelected
	}
	item, ok := m.activity.ItemByID(*m.rec.SelectedItem)
	if !ok {
		m.mu.Unlock()
		return nil, ErrUnknownItem
	}
	f, ok := m.rec.FileByID(m.rec.ActiveFileID)
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoActiveFile
	}
	rec := m.rec.Clone()
	delete(rec.TestCaseResults, item.ItemID)
	rec.DraftScore = DraftScore(rec, m.activity)
	m.rec = rec
	m.persistLocked(ctx)
	token := uuid.NewString()
	m.runToken = token
	m.mu.Unlock()

	m.emit(m.stateEvent(EventStateChanged, m.now()))

	result := &CheckResult{ItemID: item.ItemID}
	for _, tc := range item.TestCases {
		result.MaxPoints += tc.TestCasePoints
	}

	for _, tc := range item.TestCases {
		res, err := m.runner.Run(ctx, compiler.RunRequest{Token: token, Language: f.Extension, Code: f.Content, Input: tc.InputData})
		if err != nil {
			return result, fmt.Errorf("check item: %w", err)
		}
		pass := Passes(res.Output, tc.ExpectedOutput)
		points := 0
		if pass {
			points = tc.TestCasePoints
		}

		m.mu.Lock()
		if m.runToken != token {
			m.mu.Unlock()
			return result, ErrStaleRun
		}
		if err := m.writableLocked(); err != nil {
			m.mu.Unlock()
			return result, err
		}
		rec := m.rec.Clone()
		cases := rec.TestCaseResults[item.ItemID]
		if cases == nil {
			cases = make(map[int64]model.TestCaseResult)
			rec.TestCaseResults[item.ItemID] = cases
		}
		latest, locked := pass, pass
		cases[tc.TestCaseID] = model.TestCaseResult{
			LockedPass:   &locked,
			LockedPoints: points,
			LockedOutput: res.Output,
			LatestPass:   &latest,
			LatestOutput: res.Output,
		}
		rec.DraftScore = DraftScore(rec, m.activity)
		m.rec = rec
		m.persistLocked(ctx)
		m.mu.Unlock()

		cr := CaseResult{TestCaseID: tc.TestCaseID, Pass: pass, Points: points}
		if !tc.IsHidden {
			cr.Output = res.Output
		}
		result.Cases = append(result.Cases, cr)
		result.Score += points

		m.emit(m.stateEvent(EventStateChanged, m.now()))
		m.progress.Schedule()
	}

	m.log.Info().
		Int64("item_id", item.ItemID).
		Int("score", result.Score).
		Int("max_points", result.MaxPoints).
		Msg("Item checked")
	return result, nil
}

func (m *Manager) currentRun(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runToken == token
}
