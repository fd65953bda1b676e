package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neudev/attemptd/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	ok    atomic.Bool
	calls atomic.Int32
}

func (s *fakeSource) ProgressSnapshot() (model.Progress, bool) {
	s.calls.Add(1)
	return model.Progress{TimeRemaining: 30}, s.ok.Load()
}

type fakeSink struct {
	mu    sync.Mutex
	saved []model.Progress
	err   error
	block chan struct{}
}

func (s *fakeSink) SaveProgress(_ context.Context, _ int64, p model.Progress) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestPushSkipsClosedAttempt(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	w := NewProgressWorker(1, src, sink, time.Hour, zerolog.Nop())

	w.Push(context.Background())
	assert.Equal(t, 0, sink.count())

	src.ok.Store(true)
	w.Push(context.Background())
	assert.Equal(t, 1, sink.count())
}

func TestPushErrorIsSwallowed(t *testing.T) {
	src := &fakeSource{}
	src.ok.Store(true)
	sink := &fakeSink{err: errors.New("offline")}
	w := NewProgressWorker(1, src, sink, time.Hour, zerolog.Nop())

	assert.NotPanics(t, func() { w.Push(context.Background()) })
	assert.Equal(t, 1, sink.count())
}

func TestScheduleAndInterval(t *testing.T) {
	src := &fakeSource{}
	src.ok.Store(true)
	sink := &fakeSink{}
	w := NewProgressWorker(1, src, sink, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Schedule()
	w.Schedule()
	assert.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestBarrierWaitsForInFlightPush(t *testing.T) {
	src := &fakeSource{}
	src.ok.Store(true)
	sink := &fakeSink{block: make(chan struct{})}
	w := NewProgressWorker(1, src, sink, time.Hour, zerolog.Nop())

	go w.Push(context.Background())
	assert.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	acquired := make(chan struct{})
	go func() {
		release := w.Barrier()
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("barrier passed an in-flight push")
	case <-time.After(30 * time.Millisecond):
	}

	close(sink.block)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("barrier never released")
	}
	assert.Equal(t, 1, sink.count())
}
