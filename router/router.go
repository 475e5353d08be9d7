// Package router resolves a database address to its Worker, lazily
// materializing the underlying database and worker goroutine on first use.
// All map access happens on a single goroutine, so no locking is needed.
package router

import (
	"context"
	"fmt"

	"github.com/ryanpbrewster/ezdb/com"
	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/tokens"
	"github.com/ryanpbrewster/ezdb/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type resolveRequest struct {
	address tokens.DatabaseAddress
	reply   chan resolveResult
}

type resolveResult struct {
	worker *worker.Worker
	err    error
}

// Router owns every Worker for the process, keyed by database address, and
// serializes access to that map through requests channel.
type Router struct {
	factory database.Factory
	logging *logging.Logging
	logger  *logging.Logger

	requests chan resolveRequest
	group    *errgroup.Group
	groupCtx context.Context
}

// New starts the router's actor loop, pulling databases from factory as
// they're first addressed.
func New(ctx context.Context, factory database.Factory, lg *logging.Logging) *Router {
	group, groupCtx := errgroup.WithContext(ctx)

	r := &Router{
		factory:  factory,
		logging:  lg,
		logger:   lg.GetLogger("router"),
		requests: make(chan resolveRequest),
		group:    group,
		groupCtx: groupCtx,
	}

	group.Go(func() error {
		return r.run(groupCtx)
	})

	return r
}

// Resolve returns the Worker for address, opening its database and starting
// its dispatch goroutine the first time address is seen.
func (r *Router) Resolve(ctx context.Context, address tokens.DatabaseAddress) (*worker.Worker, error) {
	req := resolveRequest{address: address, reply: make(chan resolveResult, 1)}

	select {
	case r.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.groupCtx.Done():
		return nil, fmt.Errorf("router is shutting down")
	}

	select {
	case res := <-req.reply:
		return res.worker, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Router) run(ctx context.Context) error {
	workers := make(map[tokens.DatabaseAddress]*worker.Worker)
	defer func() {
		for _, w := range workers {
			w.Close()
		}
	}()

	for {
		select {
		case req := <-r.requests:
			w, ok := workers[req.address]
			if !ok {
				db, err := r.factory.Open(ctx, req.address)
				if err != nil {
					req.reply <- resolveResult{err: err}
					continue
				}

				r.logger.Infow("Opened database", zap.String("address", req.address.String()))
				w = worker.New(ctx, db, r.logging.GetLogger("worker").GetChildLogger(req.address.String()))
				workers[req.address] = w
			}

			req.reply <- resolveResult{worker: w}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Wait blocks until the router's actor loop exits, which happens when the
// context passed to New is canceled.
func (r *Router) Wait() error {
	return r.group.Wait()
}

// AsWaiter adapts Router to com.Waiter for use with com.WaitAsync.
func (r *Router) AsWaiter() com.Waiter {
	return com.WaiterFunc(r.Wait)
}
