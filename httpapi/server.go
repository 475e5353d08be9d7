package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/router"
)

// NewRouter builds the chi mux for the whole gateway surface: raw SQL,
// named-SQL invocation, policy management, plus the operator endpoints
// (/healthz, .../interrupt).
func NewRouter(rt *router.Router, logger *logging.Logger) http.Handler {
	h := &handlers{router: rt}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(requestID)
	mux.Use(accessLog(logger))

	mux.Get("/healthz", handleHealthz)

	mux.Route("/v0/{project}/{database}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/raw", h.handleQueryRaw)
			r.Post("/raw", h.handleMutateRaw)
			r.Get("/policy", h.handleFetchPolicy)
			r.Put("/policy", h.handleSetPolicy)
			r.Post("/interrupt", h.handleInterrupt)
		})

		r.Get("/named/{name}", h.handleQueryNamed)
		r.Post("/named/{name}", h.handleMutateNamed)
	})

	return mux
}

// NewServer wraps NewRouter's handler in an *http.Server bound to addr.
func NewServer(addr string, rt *router.Router, logger *logging.Logger) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: NewRouter(rt, logger),
	}
}

// Shutdown is a thin alias kept so callers don't need to import net/http
// themselves just to stop a *http.Server gracefully.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
