// Package middleware holds the HTTP middleware that sits in front of every
// comparathor route: the access log and CORS.
//
// Each middleware has the chi shape func(http.Handler) http.Handler, so the
// router composes them with Use:
//
//	r.Use(middleware.Logger(logger))   // runs around the handler
//	r.Use(middleware.CORS(origins))    // may answer before the handler
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// statusRecorder remembers what the handler sent so the access log can
// report it afterwards. http.ResponseWriter offers no getter for either.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Logger writes one access-log line per request once the handler returns.
//
// The line carries the chi request id, method, path, status, latency and
// response size. The level follows the status: Error for 5xx, Warn for 4xx,
// Info otherwise. Only the URL path is recorded; headers, query strings and
// bodies are not, so bearer tokens and passwords never reach the log.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.LogAttrs(r.Context(), levelFor(rec.status), "request completed",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(started)),
				slog.Int64("bytes", rec.bytes),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
