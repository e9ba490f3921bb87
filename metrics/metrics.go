// Package metrics holds the Prometheus collectors of the room server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "popbattle"

// Manager owns one registry and the collectors registered on it.
type Manager struct {
	registry *prometheus.Registry

	roomActions    *prometheus.CounterVec
	roomsCreated   prometheus.Counter
	roomsDeleted   prometheus.Counter
	storeLatency   *prometheus.HistogramVec
	storeConflicts prometheus.Counter
	catalogCache   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var defaultManager = NewManager() //nolint:gochecknoglobals // process-wide collectors

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// NewManager creates a manager on a fresh registry with Go runtime collectors.
func NewManager() *Manager {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Manager{
		registry: reg,
		roomActions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_actions_total",
			Help:      "Room actions by action and outcome (ok or error kind)",
		}, []string{"action", "outcome"}),
		roomsCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created",
		}),
		roomsDeleted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_deleted_total",
			Help:      "Rooms deleted because the last player left",
		}),
		storeLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_seconds",
			Help:      "Latency of room store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		storeConflicts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Room updates abandoned after exhausting optimistic retries",
		}),
		catalogCache: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "popularity_cache_lookups_total",
			Help:      "Popularity cache lookups by result (hit or miss)",
		}, []string{"result"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RoomAction counts one applied or rejected action.
func (m *Manager) RoomAction(action, outcome string) {
	m.roomActions.WithLabelValues(action, outcome).Inc()
}

// RoomCreated counts a created room.
func (m *Manager) RoomCreated() { m.roomsCreated.Inc() }

// RoomDeleted counts a room removed by its last leave.
func (m *Manager) RoomDeleted() { m.roomsDeleted.Inc() }

// ObserveStore records the latency of a store operation started at start.
func (m *Manager) ObserveStore(op string, start time.Time) {
	m.storeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// StoreConflict counts an update that ran out of retries.
func (m *Manager) StoreConflict() { m.storeConflicts.Inc() }

// PopularityLookups counts cache hits and misses of one batch lookup.
func (m *Manager) PopularityLookups(hits, misses int) {
	m.catalogCache.WithLabelValues("hit").Add(float64(hits))
	m.catalogCache.WithLabelValues("miss").Add(float64(misses))
}

// HTTPRequest records one served request.
func (m *Manager) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
