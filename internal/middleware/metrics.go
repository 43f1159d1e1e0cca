package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/foresafe/foresafe/internal/metrics"
)

// Metrics records request counts and latencies labeled by route pattern, so
// /s/FS-0001 and /s/FS-0002 share one series.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
