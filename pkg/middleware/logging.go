package middleware

import (
	"net/http"
	"time"

	"github.com/orgdeck/orgdeck/pkg/contextkeys"
	"github.com/orgdeck/orgdeck/pkg/observability"
)

// statusWriter captures the response status for the access log
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logging writes one structured access log line per request and attaches a
// request-scoped logger to the context
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			reqLogger := logger.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": contextkeys.GetRequestID(r.Context()),
			})
			ctx := contextkeys.WithLogger(r.Context(), reqLogger)

			next.ServeHTTP(sw, r.WithContext(ctx))

			reqLogger.WithFields(map[string]interface{}{
				"status":      sw.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}

// Recovery converts handler panics into 500 responses instead of tearing
// down the connection
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).
						WithField("path", r.URL.Path).
						WithField("request_id", contextkeys.GetRequestID(r.Context())).
						Error("handler panic recovered")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"message":"Internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
