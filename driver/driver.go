// Package driver wraps the sqlite driver.Connector with retry-on-open logic
// and the interrupt-handle machinery the persistence façade uses to cancel an
// in-flight statement.
package driver

import (
	"context"
	"database/sql/driver"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ryanpbrewster/ezdb/backoff"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/retry"
	"go.uber.org/zap"
)

// SQLite is the driver name modernc.org/sqlite registers itself under.
const SQLite string = "sqlite"

var connectTimeout = time.Minute * 5

// RetryConnector wraps driver.Connector with retry logic for transient
// failures opening the underlying sqlite file.
type RetryConnector struct {
	driver.Connector

	logger *logging.Logger
}

// NewConnector creates a fully initialized RetryConnector from the given args.
func NewConnector(c driver.Connector, logger *logging.Logger) *RetryConnector {
	return &RetryConnector{Connector: c, logger: logger}
}

// Connect implements part of the driver.Connector interface.
func (c RetryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	var conn driver.Conn
	err := errors.Wrap(retry.WithBackoff(
		ctx,
		func(ctx context.Context) (err error) {
			conn, err = c.Connector.Connect(ctx)
			return
		},
		shouldRetry,
		backoff.NewExponentialWithJitter(time.Millisecond*128, time.Minute*1),
		retry.Settings{
			Timeout: connectTimeout,
			OnRetryableError: func(elapsed time.Duration, attempt uint64, err, lastErr error) {
				if lastErr == nil || err.Error() != lastErr.Error() {
					c.logger.Warnw("Can't open database file. Retrying", zap.Error(err))
				}
			},
			OnSuccess: func(elapsed time.Duration, attempt uint64, lastErr error) {
				if attempt > 1 {
					c.logger.Infow("Opened database file",
						zap.Duration("after", elapsed), zap.Uint64("attempts", attempt))
				}
			},
		},
	), "can't open database file")
	return conn, err
}

// Driver implements part of the driver.Connector interface.
func (c RetryConnector) Driver() driver.Driver {
	return c.Connector.Driver()
}

func shouldRetry(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	return retry.Retryable(err)
}

// InterruptHandle is a sendable token whose single operation, Interrupt,
// cancels whatever statement is currently executing against the connection
// it is attached to. It is safe to hold and call even if nothing is running.
//
// Because the persistence façade serialises all statements against its one
// connection, at most one statement is tracked at a time.
type InterruptHandle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	token  uint64
}

// Interrupt aborts the statement currently in flight, if any. It is a no-op
// otherwise, and safe to call concurrently and repeatedly.
func (h *InterruptHandle) Interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
}

// Track derives a cancellable context from parent for the duration of one
// statement execution. The returned release func must be called (typically
// deferred) once the statement has finished, whether it succeeded, failed or
// was interrupted.
func (h *InterruptHandle) Track(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	h.mu.Lock()
	h.cancel = cancel
	h.token++
	mine := h.token
	h.mu.Unlock()

	return ctx, func() {
		h.mu.Lock()
		if h.token == mine {
			h.cancel = nil
		}
		h.mu.Unlock()
		cancel()
	}
}
