package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// ErrQueueFull is returned when the buffer is full and the caller's context
// ends before a slot frees up.
var ErrQueueFull = errors.New("queue is full")

type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is the last known state of a submitted batch.
type Status struct {
	State  State
	Result *core.BatchResult
	Err    error
}

// BatchRunner is the part of core.Processor the queue needs.
type BatchRunner interface {
	Run(ctx context.Context, job async.Job) (*core.BatchResult, error)
}

type processorRunner struct{ p *core.Processor }

func (r processorRunner) Run(ctx context.Context, job async.Job) (*core.BatchResult, error) {
	return r.p.Run(ctx, job.Session, job.Inputs)
}

// BatchQueue runs batches one at a time in submission order.
type BatchQueue struct {
	run       BatchRunner
	logger    *slog.Logger
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time

	ch   chan async.Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	smu      sync.Mutex
	statuses map[uuid.UUID]*entry
}

type entry struct {
	Status
	finished time.Time // zero while queued or running
}

type Option func(*BatchQueue)

func WithQueueSize(n int) Option {
	return func(q *BatchQueue) {
		if n > 0 {
			q.ch = make(chan async.Job, n)
		}
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(q *BatchQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRetention sets how long finished batches stay visible through Status.
// Older entries are dropped; callers fall back to the session store.
func WithRetention(d time.Duration) Option {
	return func(q *BatchQueue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// WithClock replaces time.Now for retention bookkeeping (tests).
func WithClock(now func() time.Time) Option {
	return func(q *BatchQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithRunner replaces the processor (tests).
func WithRunner(r BatchRunner) Option {
	return func(q *BatchQueue) {
		if r != nil {
			q.run = r
		}
	}
}

func NewBatchQueue(proc *core.Processor, logger *slog.Logger, opts ...Option) *BatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &BatchQueue{
		run:       processorRunner{proc},
		logger:    logger,
		timeout:   30 * time.Minute,
		retention: time.Hour,
		now:       time.Now,
		ch:        make(chan async.Job, 16),
		statuses:  make(map[uuid.UUID]*entry),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *BatchQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Info("batch worker started")
			for job := range q.ch {
				q.process(job)
			}
			q.logger.Info("batch worker stopped")
		}()
	})
}

func (q *BatchQueue) process(job async.Job) {
	id := job.Session.SessionID
	q.setStatus(id, Status{State: StateRunning})

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	res, err := q.run.Run(ctx, job)
	cancel()

	st := Status{State: StateDone, Result: res, Err: err}
	if err != nil {
		st.State = StateFailed
		q.logger.Error("batch failed", "session_id", id, "error", err, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
	} else {
		q.logger.Info("batch processed", "session_id", id, "files", len(job.Inputs), "trace_id", job.TraceID)
	}
	q.setStatus(id, st)
}

// Enqueue submits job. When the buffer is full it blocks until a slot frees
// up or ctx ends.
func (q *BatchQueue) Enqueue(ctx context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "session_id", job.Session.SessionID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	id := job.Session.SessionID
	q.setStatus(id, Status{State: StateQueued})
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "session_id", id)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.smu.Lock()
			delete(q.statuses, id)
			q.smu.Unlock()
			return ErrQueueFull
		}
	}
	q.logger.Info("queued batch", "session_id", id, "files", len(job.Inputs))
	return nil
}

// Status reports the state of a submitted batch.
func (q *BatchQueue) Status(id uuid.UUID) (Status, bool) {
	q.smu.Lock()
	defer q.smu.Unlock()
	q.evictLocked()
	e, ok := q.statuses[id]
	if !ok {
		return Status{}, false
	}
	return e.Status, true
}

func (q *BatchQueue) setStatus(id uuid.UUID, st Status) {
	q.smu.Lock()
	defer q.smu.Unlock()
	e := &entry{Status: st}
	if st.State == StateDone || st.State == StateFailed {
		e.finished = q.now()
	}
	q.statuses[id] = e
	q.evictLocked()
}

// evictLocked drops finished entries older than the retention window.
// smu must be held.
func (q *BatchQueue) evictLocked() {
	cutoff := q.now().Add(-q.retention)
	for id, e := range q.statuses {
		if !e.finished.IsZero() && e.finished.Before(cutoff) {
			delete(q.statuses, id)
		}
	}
}

func (q *BatchQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
