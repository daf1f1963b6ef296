// Package metric provides Prometheus metrics for keymesh.
//
// It exposes command rates and latencies, connection counts and keyspace
// size for monitoring. The registry is optional everywhere it is accepted:
// a nil *Registry disables collection.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keymesh"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandErrors   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Connection metrics
	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ProtocolErrors      prometheus.Counter

	// Keyspace metrics
	KeysExpired prometheus.Counter
}

// NewRegistry creates and registers all application metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Commands dispatched, by command name",
		}, []string{"cmd"}),

		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "command_errors_total",
			Help:      "Error replies produced, by command name",
		}, []string{"cmd"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "command_duration_seconds",
			Help:      "Command dispatch latency, by command name",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"cmd"}),

		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently open client sessions",
		}),

		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Client sessions accepted since start",
		}),

		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_rejected_total",
			Help:      "Connections refused by the client limit",
		}),

		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "protocol_errors_total",
			Help:      "Connections closed for protocol violations",
		}),

		KeysExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "keys_expired_total",
			Help:      "Entries evicted by expiry (lazy or swept)",
		}),
	}

	r.reg.MustRegister(
		r.CommandsTotal,
		r.CommandErrors,
		r.CommandDuration,
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.ConnectionsRejected,
		r.ProtocolErrors,
		r.KeysExpired,
		collectors.NewGoCollector(),
	)

	return r
}

// RegisterKeyspaceSize exposes the keyspace entry count as a gauge backed
// by fn.
func (r *Registry) RegisterKeyspaceSize(fn func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "keyspace_keys",
		Help:      "Entries in the keyspace, including not-yet-swept expired ones",
	}, func() float64 {
		return float64(fn())
	}))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
