package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bizfin/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger attaches a request-scoped logger to the context and logs
// each completed request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLog := logger.WithFields(h.logger, map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rec.Header().Set("X-Request-ID", requestID)
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), reqLog)))

		reqLog.Debug().
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("request completed")
	})
}
