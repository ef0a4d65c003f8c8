// Package activity records completed API calls to the audit trail without
// ever touching the request path: records are handed to a background worker
// and persistence failures surface only through the logging channel.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/optiohire/optiohire-api/internal/storage"
)

// ActionAPICall is the action recorded for every tracked request.
const ActionAPICall = "api_call"

// persistTimeout bounds each storage write made by the worker.
const persistTimeout = 5 * time.Second

// Recorder dispatches activity records to storage from a single background
// worker goroutine. Dispatch never blocks: when the queue is full the record
// is dropped with a warning.
type Recorder struct {
	store  storage.ActivityStore
	logger *slog.Logger
	queue  chan *storage.ActivityRecord
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts the background worker. queueSize <= 0 picks a default.
func NewRecorder(store storage.ActivityStore, logger *slog.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}

	r := &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan *storage.ActivityRecord, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues one activity record for persistence. It returns immediately;
// the caller's response is never delayed by the write. Records arriving after
// Close are dropped with a warning.
func (r *Recorder) Record(rec *storage.ActivityRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("activity recorder closed, dropping record",
			slog.String("endpoint", rec.Endpoint),
			slog.String("method", rec.Method),
		)
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("activity queue full, dropping record",
			slog.String("endpoint", rec.Endpoint),
			slog.String("method", rec.Method),
		)
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for rec := range r.queue {
		// Detached from any request context: a client disconnect must not
		// cancel an in-flight audit write.
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := r.store.AppendActivity(ctx, rec); err != nil {
			r.logger.Error("failed to persist activity record",
				slog.String("endpoint", rec.Endpoint),
				slog.String("method", rec.Method),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}

// Close stops accepting records and waits for queued writes to drain, up to
// the context deadline. It is safe to call once; later Record calls become
// no-ops.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
