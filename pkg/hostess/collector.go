package hostess

import "github.com/prometheus/client_golang/prometheus"

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Entries           int
	ReservedTerminals int
	Endpoints         int
	Registrations     uint64
	Evictions         uint64
}

// Stats counts live entries, reserved terminals and endpoints.
func (h *Hostess) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	now := h.cfg.Clock.Now()
	s := Stats{
		Endpoints:     len(h.endpoints),
		Registrations: h.registrations.Load(),
		Evictions:     h.evictions.Load(),
	}
	for _, e := range h.entries {
		if !h.live(e, now) {
			continue
		}
		s.Entries++
		for _, t := range e.Terminals {
			if !t.Available() {
				s.ReservedTerminals++
			}
		}
	}
	return s
}

// Collector exports registry state to Prometheus at scrape time.
type Collector struct {
	h             *Hostess
	entries       *prometheus.Desc
	reserved      *prometheus.Desc
	endpoints     *prometheus.Desc
	registrations *prometheus.Desc
	evictions     *prometheus.Desc
}

// NewCollector creates a collector for h.
func NewCollector(h *Hostess) *Collector {
	return &Collector{
		h:             h,
		entries:       prometheus.NewDesc("hostess_entries", "Live registry entries.", nil, nil),
		reserved:      prometheus.NewDesc("hostess_terminals_reserved", "Reserved terminals across live entries.", nil, nil),
		endpoints:     prometheus.NewDesc("hostess_endpoints", "Recorded endpoints.", nil, nil),
		registrations: prometheus.NewDesc("hostess_registrations_total", "Successful registrations.", nil, nil),
		evictions:     prometheus.NewDesc("hostess_evictions_total", "Entries evicted for missing heartbeats.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.reserved
	ch <- c.endpoints
	ch <- c.registrations
	ch <- c.evictions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.h.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.reserved, prometheus.GaugeValue, float64(s.ReservedTerminals))
	ch <- prometheus.MustNewConstMetric(c.endpoints, prometheus.GaugeValue, float64(s.Endpoints))
	ch <- prometheus.MustNewConstMetric(c.registrations, prometheus.CounterValue, float64(s.Registrations))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
}
