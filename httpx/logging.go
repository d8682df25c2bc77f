package httpx

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/quick-questionnaire/log"
)

// RequestLogger logs one line per request. Query strings are left out so
// access tokens never reach the log.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		entry := log.WithFields(log.Fields{
			"request":  middleware.GetReqID(r.Context()),
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration,
		})
		switch {
		case m.Code >= 500:
			entry.Error("http.request")
		case m.Code >= 400:
			entry.Info("http.request")
		default:
			entry.Debug("http.request")
		}
	})
}
