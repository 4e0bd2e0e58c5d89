package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes transport activity.
type Metrics interface {
	IncCalls(service string)
	IncDeliveries(outcome string)
	IncCancels()
	SetPending(n int)
}

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeDropped   = "dropped"
)

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncCalls(string)      {}
func (Noop) IncDeliveries(string) {}
func (Noop) IncCancels()          {}
func (Noop) SetPending(int)       {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	calls      *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	cancels    prometheus.Counter
	pending    prometheus.Gauge
}

// NewProm builds the collectors and registers them with reg.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "calls_total",
			Help:      "Service calls started by service name",
		}, []string{"service"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Responses delivered or dropped",
		}, []string{"outcome"}),
		cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "cancels_total",
			Help:      "Calls cancelled by callers",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "pending",
			Help:      "Calls waiting for delivery, subscriptions included",
		}),
	}
	reg.MustRegister(p.calls, p.deliveries, p.cancels, p.pending)
	return p
}

func (p *Prom) IncCalls(service string) {
	p.calls.WithLabelValues(service).Inc()
}

func (p *Prom) IncDeliveries(outcome string) {
	p.deliveries.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncCancels() {
	p.cancels.Inc()
}

func (p *Prom) SetPending(n int) {
	p.pending.Set(float64(n))
}
