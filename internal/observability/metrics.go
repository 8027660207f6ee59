package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus registry and the RPC meters.
type Metrics struct {
	Registry    *prometheus.Registry
	RPCDuration *prometheus.HistogramVec
	RPCTotal    *prometheus.CounterVec
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a private registry carrying process, Go runtime and
// kernel RPC metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	rpcDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kernel_rpc_duration_seconds",
		Help:    "Duration of kernel operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	rpcTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_rpc_total",
		Help: "Total number of kernel operations.",
	}, []string{"operation", "status"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_errors_total",
		Help: "Total number of failed kernel operations by error class.",
	}, []string{"operation", "type"})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		rpcDuration, rpcTotal, errorsTotal,
	)

	return &Metrics{
		Registry:    reg,
		RPCDuration: rpcDuration,
		RPCTotal:    rpcTotal,
		ErrorsTotal: errorsTotal,
	}
}

func (m *Metrics) observe(op, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(op, status).Observe(seconds)
	m.RPCTotal.WithLabelValues(op, status).Inc()
}
