package attempt

import (
	"time"

	"github.com/neudev/attemptd/internal/model"
)

// EventType names a manager notification.
type EventType string

const (
	EventTick         EventType = "tick"
	EventExpired      EventType = "expired"
	EventReconciled   EventType = "reconciled"
	EventStateChanged EventType = "state_changed"
	EventRunOutput    EventType = "run_output"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
	EventPurged       EventType = "purged"
)

// Event is pushed to subscribers. Fields are set according to Type.
type Event struct {
	Type          EventType         `json:"type"`
	ActivityID    int64             `json:"activity_id"`
	Remaining     int64             `json:"remaining"`
	RemainingText string            `json:"remaining_text"`
	State         model.SubmitState `json:"state"`
	Output        string            `json:"output,omitempty"`
	Outcome       *Outcome          `json:"outcome,omitempty"`
	Error         string            `json:"error,omitempty"`
	At            time.Time         `json:"at"`
}

const subscriberBuffer = 32

// Subscribe returns a channel of events and a function that cancels the subscription.
// Slow subscribers miss events rather than stall the manager.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	m.subMu.Lock()
	if m.closed {
		m.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

func (m *Manager) emit(ev Event) {
	ev.ActivityID = m.key.ActivityID
	if ev.At.IsZero() {
		ev.At = m.now()
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Manager) closeSubscribers() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
