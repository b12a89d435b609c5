package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Close reasons reported on mcwire_connections_closed_total.
const (
	CloseReasonEOF      = "eof"
	CloseReasonProtocol = "protocol"
	CloseReasonIO       = "io"
	CloseReasonTimeout  = "timeout"
	CloseReasonShutdown = "shutdown"
	CloseReasonHandler  = "handler"
	CloseReasonLimit    = "limit"
	CloseReasonPanic    = "panic"
)

var (
	registerOnce sync.Once

	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcwire",
			Subsystem: "connections",
			Name:      "active",
			Help:      "Currently open client connections.",
		},
	)
	connectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcwire",
			Subsystem: "connections",
			Name:      "total",
			Help:      "Accepted client connections.",
		},
	)
	connectionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcwire",
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Closed client connections by reason.",
		},
		[]string{"reason"},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcwire",
			Subsystem: "frames",
			Name:      "total",
			Help:      "Frames read and written.",
		},
		[]string{"direction"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcwire",
			Subsystem: "frames",
			Name:      "body_bytes",
			Help:      "Packet body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 8),
		},
		[]string{"direction"},
	)
	packetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcwire",
			Subsystem: "packets",
			Name:      "total",
			Help:      "Decoded serverbound packets by state and id.",
		},
		[]string{"state", "packet", "known"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcwire",
			Subsystem: "admin_http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcwire",
			Subsystem: "admin_http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsActive,
			connectionsTotal,
			connectionsClosed,
			framesTotal,
			frameBytes,
			packetsTotal,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnOpened() {
	RegisterMetrics()
	connectionsTotal.Inc()
	connectionsActive.Inc()
}

func RecordConnClosed(reason string) {
	RegisterMetrics()
	connectionsActive.Dec()
	connectionsClosed.WithLabelValues(reason).Inc()
}

// RecordConnRejected counts a connection closed before it got a worker.
func RecordConnRejected(reason string) {
	RegisterMetrics()
	connectionsTotal.Inc()
	connectionsClosed.WithLabelValues(reason).Inc()
}

func RecordFrame(direction string, bodyLen int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction).Inc()
	frameBytes.WithLabelValues(direction).Observe(float64(bodyLen))
}

func RecordPacket(state string, id int32, known bool) {
	RegisterMetrics()
	packetsTotal.WithLabelValues(state, "0x"+strconv.FormatInt(int64(id), 16), strconv.FormatBool(known)).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
