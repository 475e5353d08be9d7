package worker

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/ezerr"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/tokens"
	"github.com/stretchr/testify/require"
)

func testLogging(t *testing.T) *logging.Logging {
	t.Helper()

	lg, err := logging.NewLogging("test", logging.Config{Output: logging.CONSOLE, Interval: time.Second})
	require.NoError(t, err)

	return lg
}

func newTestWorker(t *testing.T, ctx context.Context) *Worker {
	t.Helper()

	address, err := tokens.NewDatabaseAddress("acme", "orders")
	require.NoError(t, err)

	lg := testLogging(t)
	db, err := database.InMemoryFactory{Logging: lg}.Open(ctx, address)
	require.NoError(t, err)

	w := New(ctx, db, lg.GetLogger("worker"))
	t.Cleanup(w.Close)

	return w
}

func TestWorker_HandleExecutesAgainstDB(t *testing.T) {
	ctx := context.Background()
	w := newTestWorker(t, ctx)

	_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, db.MutateRaw(ctx, "CREATE TABLE foo (x INTEGER)")
	})
	require.NoError(t, err)

	value, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return db.QueryRaw(ctx, "SELECT 1 AS x")
	})
	require.NoError(t, err)

	rows, ok := value.([]database.Row)
	require.True(t, ok)
	require.Len(t, rows, 1)
}

// TestWorker_SerializesConcurrentRequests submits many data requests
// concurrently and has each one append to a plain, unsynchronized counter
// from inside its Run closure. If the worker ever executed two jobs at
// once, this would be a data race; under `go test -race` that failure mode
// is caught directly instead of inferred from timing.
func TestWorker_SerializesConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	w := newTestWorker(t, ctx)

	_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, db.MutateRaw(ctx, "CREATE TABLE seq (n INTEGER)")
	})
	require.NoError(t, err)

	// No more than fit in the mailbox, so that no submission can get ezerr.Busy.
	const n = mailboxCapacity
	var unsynchronizedCounter int
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
				unsynchronizedCounter++
				return nil, db.MutateRaw(ctx, "INSERT INTO seq (n) VALUES ("+strconv.Itoa(i)+")")
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, unsynchronizedCounter)

	value, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return db.QueryRaw(ctx, "SELECT COUNT(1) AS c FROM seq")
	})
	require.NoError(t, err)
	rows := value.([]database.Row)
	require.Equal(t, int64(n), rows[0][0].Value.Integer)
}

func TestWorker_BusyOnMailboxOverflow(t *testing.T) {
	ctx := context.Background()
	w := newTestWorker(t, ctx)

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the one executing slot so the mailboxCapacity sends after it
	// fill the queue, and the next one overflows.
	go func() {
		_, _ = w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
			close(started)
			<-block
			return nil, nil
		})
	}()
	<-started

	replies := make(chan error, mailboxCapacity)
	for i := 0; i < mailboxCapacity; i++ {
		go func() {
			_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
				return nil, nil
			})
			replies <- err
		}()
	}

	require.Eventually(t, func() bool {
		return len(w.mailbox) == mailboxCapacity
	}, time.Second, time.Millisecond)

	_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ezerr.Busy)

	close(block)
	for i := 0; i < mailboxCapacity; i++ {
		require.NoError(t, <-replies)
	}
}

func TestWorker_InterruptInvalidatesQueuedJob(t *testing.T) {
	ctx := context.Background()
	w := newTestWorker(t, ctx)

	block := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
			close(started)
			<-block
			return nil, nil
		})
	}()
	<-started

	queuedErr := make(chan error, 1)
	go func() {
		_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
			return nil, nil
		})
		queuedErr <- err
	}()

	// Let the second Handle call land in the mailbox before interrupting.
	require.Eventually(t, func() bool {
		return len(w.mailbox) == 1
	}, time.Second, time.Millisecond)

	w.Interrupt()
	close(block)

	require.ErrorIs(t, <-queuedErr, ezerr.Interrupted)
}

func TestWorker_InterruptAbortsRunningStatement(t *testing.T) {
	ctx := context.Background()
	w := newTestWorker(t, ctx)

	runningErr := make(chan error, 1)
	started := make(chan struct{})

	go func() {
		_, err := w.Handle(ctx, func(ctx context.Context, db *database.DB) (interface{}, error) {
			// Mirrors how every real database.DB operation tracks its
			// execution context against the interrupt handle.
			trackedCtx, release := db.InterruptHandle().Track(ctx)
			defer release()

			close(started)
			<-trackedCtx.Done()
			return nil, trackedCtx.Err()
		})
		runningErr <- err
	}()
	<-started

	w.Interrupt()
	require.Error(t, <-runningErr)
}
