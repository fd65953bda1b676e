package attempt

import (
	"context"
	"sync"
	"time"
)

// scheduler runs fn on every tick until stopped. Stop never waits for fn, so fn
// itself may stop the scheduler it runs on.
type scheduler struct {
	interval time.Duration
	fn       func(context.Context, time.Time)
	stop     chan struct{}
	once     sync.Once
}

func newScheduler(interval time.Duration, fn func(context.Context, time.Time)) *scheduler {
	return &scheduler{interval: interval, fn: fn, stop: make(chan struct{})}
}

func (s *scheduler) run(ctx context.Context, now func() time.Time) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.fn(ctx, now())
		}
	}
}

func (s *scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Tick advances the countdown. When the deadline has passed the countdown stops,
// the attempt is flagged expired and the auto-submit coordinator is triggered.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	m.mu.Lock()
	if !m.started || m.expired || m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	remaining := Remaining(m.rec, now)
	if remaining > 0 {
		m.mu.Unlock()
		m.emit(Event{Type: EventTick, Remaining: remaining, RemainingText: formatRemaining(remaining), State: StateIdle, At: now})
		return
	}

	m.expired = true
	if m.countdown != nil {
		m.countdown.Stop()
	}
	m.mu.Unlock()

	m.log.Info().Msg("Attempt time expired")
	m.emit(Event{Type: EventExpired, RemainingText: formatRemaining(0), State: StateIdle, At: now})

	if _, err := m.finalize(ctx, TriggerExpiry); err != nil {
		m.log.Warn().Err(err).Msg("Auto-submit on expiry failed")
	}
}
