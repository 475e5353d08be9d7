package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ryanpbrewster/ezdb/logging"
	"github.com/ryanpbrewster/ezdb/utils"
	"go.uber.org/zap"
)

// maxLoggedBodyRunes bounds how much of the request path an access log line
// echoes, using utils.Ellipsize. Request bodies are not logged.
const maxLoggedBodyRunes = 200

// requestID tags every request with an X-Request-Id (generating one if the
// caller didn't supply it) and stashes it for accessLog to pick up.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one structured line per request: method, path, status,
// latency and, when the path addresses a database, the project/database
// pair named in it.
func accessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []interface{}{
				zap.String("request_id", w.Header().Get("X-Request-Id")),
				zap.String("method", r.Method),
				zap.String("path", utils.Ellipsize(r.URL.Path, maxLoggedBodyRunes)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
			}
			if project := chi.URLParam(r, "project"); project != "" {
				fields = append(fields,
					zap.String("project", project),
					zap.String("database", chi.URLParam(r, "database")))
			}

			logger.Debugw("Handled request", fields...)
		})
	}
}
