package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	idleGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "typewriter",
		Subsystem: "pool",
		Name:      "idle_connections",
		Help:      "connections open and waiting in the pool",
	}, []string{"pool"})

	inUseGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "typewriter",
		Subsystem: "pool",
		Name:      "in_use_connections",
		Help:      "connections held by an execution",
	}, []string{"pool"})

	timeoutCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "typewriter",
		Subsystem: "pool",
		Name:      "acquire_timeouts_total",
		Help:      "acquisitions that gave up waiting for a connection",
	}, []string{"pool"})

	discardCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "typewriter",
		Subsystem: "pool",
		Name:      "discarded_connections_total",
		Help:      "connections closed after failing the liveness probe",
	}, []string{"pool"})
)

func init() {
	prometheus.MustRegister(idleGauge, inUseGauge, timeoutCounter, discardCounter)
}
