package metrics

import (
	"net/http"
	"time"
)

// statusRecorder remembers the status code a handler wrote. Handlers that
// never call WriteHeader implicitly answer 200, so that is the initial value.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware wraps a handler so every request feeds the registry's
// request counter, latency histogram, and in-flight gauge.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			reg.RecordRequest(r.Method, r.URL.Path, sr.status, time.Since(start).Seconds())
		})
	}
}
