package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"warbler/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type loggingMiddleware struct {
	logs    *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewLoggingMiddleware(logger *zap.SugaredLogger, m *metrics.Metrics) *loggingMiddleware {
	return &loggingMiddleware{
		logs:    logger,
		metrics: m,
	}
}

// Logging logs one line per request and records the request counters.
func (m *loggingMiddleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routeName(r)
		elapsed := time.Since(start)

		if m.metrics != nil {
			m.metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			m.metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}

		m.logs.Infow("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration", elapsed,
			"request_id", RequestIDFrom(r.Context()))
	})
}

// routeName returns the matched mux template so ids do not blow up the
// metric label space.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
