package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arena",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arena",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	taskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "tasks",
			Name:      "runs_total",
			Help:      "Total number of background task executions.",
		},
		[]string{"name", "status"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arena",
			Subsystem: "tasks",
			Name:      "run_duration_seconds",
			Help:      "Duration of background task executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"name"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arena",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of tasks waiting in the broker queue.",
		},
	)

	websocketSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arena",
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Current number of open WebSocket status streams.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		taskRuns,
		taskDuration,
		queueDepth,
		websocketSessions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTaskRun records metrics for one background task execution.
func RecordTaskRun(name, status string, duration time.Duration) {
	if name == "" {
		name = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	taskRuns.WithLabelValues(name, status).Inc()
	taskDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// SetQueueDepth updates the broker queue depth gauge.
func SetQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}

// WebSocketOpened increments the active session gauge.
func WebSocketOpened() { websocketSessions.Inc() }

// WebSocketClosed decrements the active session gauge.
func WebSocketClosed() { websocketSessions.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack keeps WebSocket upgrades working through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// canonicalPath collapses resource IDs so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	switch parts[0] {
	case "api":
		if len(parts) == 1 {
			return "/api"
		}
		resource := parts[1]
		switch len(parts) {
		case 2:
			return "/api/" + resource
		case 3:
			if resource == "auth" || resource == "users" {
				return "/api/" + resource + "/" + parts[2]
			}
			switch parts[2] {
			case "detect", "recent", "best_scores", "best_times", "bulk_delete":
				return "/api/" + resource + "/" + parts[2]
			}
			return "/api/" + resource + "/:id"
		default:
			if resource == "users" && parts[2] == "stats" {
				return "/api/users/stats/" + parts[3]
			}
			return "/api/" + resource + "/:id/" + parts[3]
		}
	case "ws":
		if len(parts) >= 4 {
			return "/ws/" + parts[1] + "/:id/" + parts[3]
		}
		return "/ws"
	}
	return "/" + parts[0]
}
