package bus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "wirebus"

// statsMetrics holds the prometheus counters behind Options.Stats.
type statsMetrics struct {
	packetsTotal *prometheus.CounterVec
	bytesTotal   *prometheus.CounterVec
	droppedTotal prometheus.Counter
}

// newStatsMetrics registers the counters on reg. Clients sharing a
// registry share the counters: an already-registered collector is
// reused rather than duplicated.
func newStatsMetrics(reg prometheus.Registerer) *statsMetrics {
	packets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "packets_total",
		Help:      "Packets transmitted, by channel.",
	}, []string{"channel"})
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "bytes_total",
		Help:      "Encoded frame bytes transmitted, by channel.",
	}, []string{"channel"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_dropped_total",
		Help:      "Inbound frames dropped: undecodable or unknown channel.",
	})

	return &statsMetrics{
		packetsTotal: registerCounterVec(reg, packets),
		bytesTotal:   registerCounterVec(reg, bytes),
		droppedTotal: registerCounter(reg, dropped),
	}
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func (m *statsMetrics) recordBatch(channel string, packets, bytes int) {
	m.packetsTotal.WithLabelValues(channel).Add(float64(packets))
	m.bytesTotal.WithLabelValues(channel).Add(float64(bytes))
}

func (m *statsMetrics) recordDropped() {
	m.droppedTotal.Inc()
}
