// Package worker serializes every operation against one database behind a
// single goroutine and a bounded mailbox, and supports cooperative
// cancellation of whatever operation is currently running.
package worker

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ryanpbrewster/ezdb/com"
	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/ezerr"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/periodic"
	"go.uber.org/zap"
)

// mailboxCapacity bounds how many operations may be queued against one
// database before callers get ezerr.Busy instead of blocking indefinitely.
const mailboxCapacity = 16

// Run executes one data request against db.
type Run func(ctx context.Context, db *database.DB) (interface{}, error)

// job is a data request sitting in the mailbox, carrying the generation it
// was submitted under so a stale job can be recognized at dequeue time.
type job struct {
	run        Run
	generation uint64
	reply      chan result
}

type result struct {
	value interface{}
	err   error
}

// Worker owns one *database.DB and runs at most one job at a time, pulled off
// mailbox in submission order, with a generation counter that lets Interrupt
// invalidate both the job currently executing and every job still queued
// behind it.
type Worker struct {
	db     *database.DB
	logger *logging.Logger

	mailbox    chan *job
	generation atomic.Uint64

	throughput *com.Counter
	stop       periodic.Stopper
	done       chan struct{}
}

// New starts a Worker's dispatch goroutine, backed by db. Call Close to stop
// it once no more requests will be submitted.
func New(ctx context.Context, db *database.DB, logger *logging.Logger) *Worker {
	w := &Worker{
		db:         db,
		logger:     logger,
		mailbox:    make(chan *job, mailboxCapacity),
		throughput: &com.Counter{},
		done:       make(chan struct{}),
	}

	w.stop = periodic.Start(ctx, logger.Interval(), func(tick periodic.Tick) {
		if count := w.throughput.Reset(); count > 0 {
			logger.Debugf("Handled %d requests", count)
		}
	}, periodic.OnStop(func(tick periodic.Tick) {
		logger.Debugf("Handled %d requests in total", w.throughput.Total())
	}))

	go w.run(ctx)

	return w
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.stop.Stop()

	for {
		select {
		case j, ok := <-w.mailbox:
			if !ok {
				return
			}
			w.dispatch(ctx, j)
		case <-ctx.Done():
			w.drain(ctx.Err())
			return
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, j *job) {
	if w.generation.Load() > j.generation {
		j.reply <- result{err: ezerr.Interrupted}
		return
	}

	id := uuid.New()
	value, err := j.run(ctx, w.db)
	w.throughput.Add(1)

	if err != nil {
		w.logger.Debugw("Request failed", zap.String("job_id", id.String()), logging.Error(err))
	}

	select {
	case j.reply <- result{value: value, err: err}:
	default:
		// Reply slot has no room (buffered, capacity 1) and no listener left to
		// drain it; the caller already gave up.
	}
}

// drain fails every request still sitting in the mailbox once the worker is
// shutting down, so no caller of Handle blocks forever.
func (w *Worker) drain(cause error) {
	for {
		select {
		case j, ok := <-w.mailbox:
			if !ok {
				return
			}
			j.reply <- result{err: ezerr.Unknown(cause.Error())}
		default:
			return
		}
	}
}

// Handle enqueues run to be executed against this worker's database and
// blocks until it completes or ctx is canceled. It returns ezerr.Busy instead
// of blocking if the mailbox is full.
func (w *Worker) Handle(ctx context.Context, run Run) (interface{}, error) {
	j := &job{run: run, generation: w.generation.Load(), reply: make(chan result, 1)}

	select {
	case w.mailbox <- j:
	default:
		return nil, ezerr.Busy
	}

	select {
	case r := <-j.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Interrupt cancels whatever operation is currently running against this
// worker's database and invalidates every job already queued behind it. The
// generation counter is bumped before the engine-level interrupt is signaled,
// per the ordering required to make both forms of cancellation observable.
func (w *Worker) Interrupt() {
	w.generation.Add(1)
	w.db.InterruptHandle().Interrupt()
}

// Close stops accepting new requests and waits for the dispatch goroutine to
// exit, interrupting whatever is in flight first so the goroutine isn't stuck
// on a runaway statement.
func (w *Worker) Close() {
	w.Interrupt()
	close(w.mailbox)
	<-w.done
}
