package worker

import (
	"context"
	"sync"
	"time"

	"github.com/neudev/attemptd/internal/model"
	"github.com/rs/zerolog"
)

// ProgressSource provides the draft to push. ok is false once the attempt is
// expired or submitted, and nothing is sent.
type ProgressSource interface {
	ProgressSnapshot() (p model.Progress, ok bool)
}

// ProgressSink stores a draft on the server.
type ProgressSink interface {
	SaveProgress(ctx context.Context, activityID int64, p model.Progress) error
}

// ProgressWorker pushes the attempt draft to the backend on change and on a fixed interval.
// Saves are fire-and-forget: failures are logged and retried on the next push.
type ProgressWorker struct {
	activityID int64
	src        ProgressSource
	sink       ProgressSink
	interval   time.Duration
	log        zerolog.Logger

	notify chan struct{}
	sendMu sync.Mutex
}

// NewProgressWorker creates a new ProgressWorker.
func NewProgressWorker(activityID int64, src ProgressSource, sink ProgressSink, interval time.Duration, log zerolog.Logger) *ProgressWorker {
	return &ProgressWorker{
		activityID: activityID,
		src:        src,
		sink:       sink,
		interval:   interval,
		log:        log.With().Str("component", "progress_worker").Int64("activity_id", activityID).Logger(),
		notify:     make(chan struct{}, 1),
	}
}

// Schedule requests a push. Requests made while one is pending are coalesced.
func (w *ProgressWorker) Schedule() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ProgressWorker) Start(ctx context.Context) {
	w.log.Debug().Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("Worker stopped")
			return
		case <-w.notify:
			w.Push(ctx)
		case <-ticker.C:
			w.Push(ctx)
		}
	}
}

// Push sends the current draft once.
func (w *ProgressWorker) Push(ctx context.Context) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	p, ok := w.src.ProgressSnapshot()
	if !ok {
		return
	}
	if err := w.sink.SaveProgress(ctx, w.activityID, p); err != nil {
		if ctx.Err() == nil {
			w.log.Warn().Err(err).Msg("Progress sync failed")
		}
		return
	}
	w.log.Debug().Int64("time_remaining", p.TimeRemaining).Msg("Progress synced")
}

// Barrier waits for an in-flight push and blocks new ones until release is called.
func (w *ProgressWorker) Barrier() (release func()) {
	w.sendMu.Lock()
	return w.sendMu.Unlock
}
