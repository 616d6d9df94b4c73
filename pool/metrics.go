package pool

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "beamline"

// Metrics are the Prometheus collectors of a station, on their own registry
type Metrics struct {
	Registry *prometheus.Registry

	position   *prometheus.GaugeVec
	moves      *prometheus.CounterVec
	calcErrors *prometheus.CounterVec
}

// NewMetrics returns registered collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pseudo_position",
			Help:      "Last computed position of a pseudo axis.",
		}, []string{"group", "axis"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "pseudo_moves_total",
			Help:      "Moves commanded on a pseudo axis.",
		}, []string{"group", "axis"}),
		calcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "calculation_errors_total",
			Help:      "Failed transforms of a pseudomotor controller.",
		}, []string{"group"}),
	}
	m.Registry.MustRegister(m.position, m.moves, m.calcErrors)
	return m
}

// RegisterCounter exposes the value of a pseudo counter as a gauge computed
// on every scrape
func (m *Metrics) RegisterCounter(c *CounterGroup, role string) error {
	return m.Registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Subsystem:   subsystem,
		Name:        "pseudo_counter_value",
		Help:        "Current value of a pseudo counter.",
		ConstLabels: prometheus.Labels{"counter": c.Name(), "role": role},
	}, func() float64 {
		v, err := c.Value(role)
		if err != nil {
			return 0
		}
		return v
	}))
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(group string, roles []string, pos []float64) {
	if m == nil {
		return
	}
	for i, r := range roles {
		m.position.WithLabelValues(group, r).Set(pos[i])
	}
}

func (m *Metrics) moved(group, axis string) {
	if m != nil {
		m.moves.WithLabelValues(group, axis).Inc()
	}
}

func (m *Metrics) failed(group string) {
	if m != nil {
		m.calcErrors.WithLabelValues(group).Inc()
	}
}
