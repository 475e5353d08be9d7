package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryanpbrewster/ezdb/database"
	"github.com/ryanpbrewster/ezdb/policy"
	"github.com/ryanpbrewster/ezdb/router"
	"github.com/ryanpbrewster/ezdb/worker"
)

// handlers owns the single process-wide Router every request is dispatched
// through.
type handlers struct {
	router *router.Router
}

func (h *handlers) resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*worker.Worker, bool) {
	address, ok := addressFromPath(w, r)
	if !ok {
		return nil, false
	}

	wkr, err := h.router.Resolve(ctx, address)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	return wkr, true
}

// run submits a worker.Run against the resolved worker and writes either its
// JSON-able result or the mapped error envelope.
func run(w http.ResponseWriter, r *http.Request, wkr *worker.Worker, f worker.Run) {
	value, err := wkr.Handle(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, value)
}

func (h *handlers) handleQueryRaw(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	sql, ok := readRawSQL(w, r)
	if !ok {
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return db.QueryRaw(ctx, sql)
	})
}

func (h *handlers) handleMutateRaw(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	sql, ok := readRawSQL(w, r)
	if !ok {
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, db.MutateRaw(ctx, sql)
	})
}

func (h *handlers) handleFetchPolicy(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return db.FetchPolicy(ctx)
	})
}

func (h *handlers) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	var p policy.Policy
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeBadRequest(w, "malformed policy document")
		return
	}

	if err := p.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, db.SetPolicy(ctx, p)
	})
}

func (h *handlers) handleQueryNamed(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	params, ok := readParams(w, r)
	if !ok {
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return db.QueryNamed(ctx, name, params)
	})
}

func (h *handlers) handleMutateNamed(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	params, ok := readParams(w, r)
	if !ok {
		return
	}

	run(w, r, wkr, func(ctx context.Context, db *database.DB) (interface{}, error) {
		return nil, db.MutateNamed(ctx, name, params)
	})
}

// handleInterrupt is an admin-only escape hatch for aborting whatever
// statement is currently running against a database. Interrupt is a
// logistics request: it never touches the mailbox, so it's invoked directly
// rather than through worker.Handle.
func (h *handlers) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	wkr, ok := h.resolve(r.Context(), w, r)
	if !ok {
		return
	}

	wkr.Interrupt()
	writeJSON(w, http.StatusOK, "ok")
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
