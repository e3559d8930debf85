package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	holdsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "holds_created_total",
			Help:      "Count of successfully created table holds.",
		},
	)

	holdsConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "holds_conflict_total",
			Help:      "Count of hold attempts rejected because tables were taken.",
		},
	)

	holdsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "holds_released_total",
			Help:      "Count of holds released explicitly.",
		},
	)

	holdsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "holds_expired_total",
			Help:      "Count of holds removed by the expiry sweep.",
		},
	)

	reservationsFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "reservations_finalized_total",
			Help:      "Count of holds converted into confirmed reservations.",
		},
	)

	broadcastSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tably",
			Name:      "broadcast_subscribers",
			Help:      "Number of live seat-map subscriptions across all slots.",
		},
	)

	broadcastDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tably",
			Name:      "broadcast_dropped_total",
			Help:      "Count of seat updates dropped on slow subscriber buffers.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			holdsCreated,
			holdsConflict,
			holdsReleased,
			holdsExpired,
			reservationsFinalized,
			broadcastSubscribers,
			broadcastDropped,
		)
	})
}

func IncHoldCreated()  { holdsCreated.Inc() }
func IncHoldConflict() { holdsConflict.Inc() }
func IncHoldReleased() { holdsReleased.Inc() }
func IncHoldExpired()  { holdsExpired.Inc() }

func IncReservationFinalized() { reservationsFinalized.Inc() }

func IncSubscribers() { broadcastSubscribers.Inc() }
func DecSubscribers() { broadcastSubscribers.Dec() }

func IncBroadcastDropped() { broadcastDropped.Inc() }
