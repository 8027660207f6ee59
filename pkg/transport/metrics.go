package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts transport activity by boundary kind. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Chunks         *prometheus.CounterVec
	Bytes          *prometheus.CounterVec
	Pauses         *prometheus.CounterVec
	ProtocolErrors *prometheus.CounterVec
	DialErrors     *prometheus.CounterVec
	Connections    *prometheus.GaugeVec
	BusMessages    *prometheus.CounterVec
}

// NewMetrics creates transport meters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_chunks_total",
			Help: "Stream chunks moved, by boundary kind and direction.",
		}, []string{"kind", "direction"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_bytes_total",
			Help: "Stream payload bytes moved, by boundary kind and direction.",
		}, []string{"kind", "direction"}),
		Pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_pauses_total",
			Help: "Times a stream paused its source because the consumer fell behind.",
		}, []string{"kind"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_protocol_errors_total",
			Help: "Malformed inbound frames or lines.",
		}, []string{"kind"}),
		DialErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_dial_errors_total",
			Help: "Failed connection attempts.",
		}, []string{"kind"}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transport_connections",
			Help: "Open socket-backed streams and bus connections.",
		}, []string{"kind"}),
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transport_bus_messages_total",
			Help: "Control bus messages, by boundary kind and direction.",
		}, []string{"kind", "direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.Chunks, m.Bytes, m.Pauses, m.ProtocolErrors, m.DialErrors, m.Connections, m.BusMessages)
	}
	return m
}

// Sent records an outbound chunk.
func (m *Metrics) Sent(kind string, n int) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(kind, "out").Inc()
	m.Bytes.WithLabelValues(kind, "out").Add(float64(n))
}

// Received records an inbound chunk.
func (m *Metrics) Received(kind string, n int) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(kind, "in").Inc()
	m.Bytes.WithLabelValues(kind, "in").Add(float64(n))
}

// Paused records a pause of the inbound source.
func (m *Metrics) Paused(kind string) {
	if m == nil {
		return
	}
	m.Pauses.WithLabelValues(kind).Inc()
}

// ProtocolError records a dropped malformed frame.
func (m *Metrics) ProtocolError(kind string) {
	if m == nil {
		return
	}
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

// DialFailed records a failed connection attempt.
func (m *Metrics) DialFailed(kind string) {
	if m == nil {
		return
	}
	m.DialErrors.WithLabelValues(kind).Inc()
}

// Opened records a new connection.
func (m *Metrics) Opened(kind string) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues(kind).Inc()
}

// Closed records a released connection.
func (m *Metrics) Closed(kind string) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues(kind).Dec()
}

// BusMessage records a control bus message.
func (m *Metrics) BusMessage(kind, direction string) {
	if m == nil {
		return
	}
	m.BusMessages.WithLabelValues(kind, direction).Inc()
}
