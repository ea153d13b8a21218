package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizroom"

// Metrics holds Prometheus metrics for the coordinator
type Metrics struct {
	Operations       *prometheus.CounterVec
	LockWait         prometheus.Histogram
	RoomsCompleted   *prometheus.CounterVec
	PlayersPurged    prometheus.Counter
	ActiveRooms      prometheus.Gauge
	ActivePlayers    prometheus.Gauge
	ConnectedPlayers prometheus.Gauge
	Connections      prometheus.Gauge
	DroppedMessages  prometheus.Counter
	Resyncs          prometheus.Counter
}

// New registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry() so instances never collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Room operations by name and result code",
			},
			[]string{"operation", "result"},
		),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_lock_wait_seconds",
			Help:      "Time spent waiting for a room lock",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		RoomsCompleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rooms_completed_total",
				Help:      "Rooms that reached the completed state, by reason",
			},
			[]string{"reason"},
		),
		PlayersPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_purged_total",
			Help:      "Disconnected players removed after the grace period",
		}),
		ActiveRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms in lobby or running state at the last monitoring pass",
		}),
		ActivePlayers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_players",
			Help:      "Players in active rooms at the last monitoring pass",
		}),
		ConnectedPlayers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Players with a live connection at the last monitoring pass",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections",
		}),
		DroppedMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_messages_total",
			Help:      "Messages dropped because a connection send buffer was full",
		}),
		Resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resync_broadcasts_total",
			Help:      "Heartbeat snapshots broadcast",
		}),
	}
}

// ObserveOperation counts one finished operation
func (m *Metrics) ObserveOperation(operation, result string) {
	m.Operations.WithLabelValues(operation, result).Inc()
}

// ObserveLockWait records how long a caller waited for a room lock
func (m *Metrics) ObserveLockWait(d time.Duration) {
	m.LockWait.Observe(d.Seconds())
}
