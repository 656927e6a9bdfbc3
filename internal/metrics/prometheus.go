package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every exported metric.
const Namespace = "thetafeed"

// Exporter publishes component counters in Prometheus format. Values are
// read from the components on each scrape.
type Exporter struct {
	reg *prometheus.Registry
}

// NewExporter creates an exporter carrying the Go runtime and process
// collectors.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Exporter{reg: reg}
}

// Counter registers a monotonically increasing value, e.g. messages received.
func (e *Exporter) Counter(subsystem, name, help string, fn func() float64) error {
	return e.reg.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Gauge registers a value that can go up and down, e.g. queue depth.
func (e *Exporter) Gauge(subsystem, name, help string, fn func() float64) error {
	return e.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the Prometheus text exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}
