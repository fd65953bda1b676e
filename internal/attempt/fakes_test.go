package attempt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/neudev/attemptd/internal/compiler"
	"github.com/neudev/attemptd/internal/model"
	"github.com/neudev/attemptd/internal/repository"
	"github.com/rs/zerolog"
)

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

var testKey = model.SessionKey{Namespace: "ns-test", ActivityID: 42}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ms(t time.Time) int64 { return t.UnixMilli() }

func testActivity() *model.Activity {
	return &model.Activity{
		ActivityName: "Loops",
		MaxPoints:    20,
		ActDuration:  "00:30:00",
		Items: []model.Item{
			{ItemID: 1, ItemName: "Sum", TestCases: []model.TestCase{
				{TestCaseID: 11, InputData: "1 2", ExpectedOutput: "3", TestCasePoints: 5},
				{TestCaseID: 12, InputData: "2 2", ExpectedOutput: "4", TestCasePoints: 5},
			}},
			{ItemID: 2, ItemName: "Max", TestCases: []model.TestCase{
				{TestCaseID: 21, InputData: "4 9", ExpectedOutput: "9", TestCasePoints: 10, IsHidden: true},
			}},
		},
		AllowedLanguages: []model.Language{{ProgLangName: "Python"}, {ProgLangName: "Java"}},
	}
}

type fakeBackend struct {
	mu          sync.Mutex
	activity    *model.Activity
	activityErr error
	progress    *model.Progress
	progressErr error
	finalizeErr error
	result      *model.FinalizeResult

	// finalizeStarted is signalled and finalizeGate awaited when set.
	finalizeStarted chan struct{}
	finalizeGate    chan struct{}

	finalizeCalls int
	clearCalls    int
	saved         []model.Progress
	payloads      []model.SubmissionPayload
}

func newBackend() *fakeBackend {
	return &fakeBackend{activity: testActivity(), progress: &model.Progress{TimeRemaining: 1800}}
}

func (b *fakeBackend) FetchActivity(context.Context, int64) (*model.Activity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.activityErr != nil {
		return nil, b.activityErr
	}
	a := *b.activity
	return &a, nil
}

func (b *fakeBackend) FetchProgress(context.Context, int64) (*model.Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress, b.progressErr
}

func (b *fakeBackend) SaveProgress(_ context.Context, _ int64, p model.Progress) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, p)
	return nil
}

func (b *fakeBackend) ClearProgress(context.Context, int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearCalls++
	return nil
}

func (b *fakeBackend) FinalizeSubmission(_ context.Context, _ int64, p model.SubmissionPayload) (*model.FinalizeResult, error) {
	b.mu.Lock()
	b.finalizeCalls++
	b.payloads = append(b.payloads, p)
	started, gate := b.finalizeStarted, b.finalizeGate
	b.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalizeErr != nil {
		return nil, b.finalizeErr
	}
	return b.result, nil
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) counts() (finalize, clear int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalizeCalls, b.clearCalls
}

func (b *fakeBackend) lastPayload() model.SubmissionPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payloads[len(b.payloads)-1]
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, req compiler.RunRequest) (compiler.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, req compiler.RunRequest) (compiler.RunResult, error) {
	return f(ctx, req)
}

// sumRunner answers the expected output only when the code is "correct".
func sumRunner() Runner {
	answers := map[string]string{"1 2": "3", "2 2": "4", "4 9": "9"}
	return runnerFunc(func(_ context.Context, req compiler.RunRequest) (compiler.RunResult, error) {
		out := "wrong"
		if req.Code == "correct" || (req.Code == "half" && req.Input == "1 2") {
			out = answers[req.Input]
		}
		return compiler.RunResult{Token: req.Token, Output: out}, nil
	})
}

func newTestManager(t *testing.T, be *fakeBackend, store repository.SessionStore, clock *fakeClock, runner Runner) *Manager {
	t.Helper()
	m := NewManager(testKey, store, be, Options{
		Runner:       runner,
		TickInterval: time.Hour,
		PollInterval: time.Hour,
		SyncInterval: time.Hour,
		Now:          clock.Now,
		Log:          zerolog.Nop(),
	})
	t.Cleanup(m.Detach)
	return m
}
