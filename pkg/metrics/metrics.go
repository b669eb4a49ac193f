// Package metrics exposes decoder, pipeline and connection counters in
// Prometheus form.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/protocol"
	"bodytrack/pkg/transport"
)

const namespace = "bodytrack"

// Metrics owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	frames        prometheus.Counter
	frameBytes    prometheus.Histogram
	rejects       *prometheus.CounterVec
	handlerErrors prometheus.Counter

	samples     prometheus.Counter
	parseErrors prometheus.Counter
	queueDrops  prometheus.Counter
	processTime prometheus.Histogram

	connections *prometheus.CounterVec
	connected   prometheus.Gauge
}

var (
	_ protocol.Observer = (*Metrics)(nil)
	_ engine.Observer   = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "frames_total",
			Help:      "Frames decoded and handed to the payload handler.",
		}),
		frameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "payload_bytes",
			Help:      "Decoded payload size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "rejects_total",
			Help:      "Framing errors by reason.",
		}, []string{"reason"}),
		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "handler_errors_total",
			Help:      "Payloads the handler refused.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pose",
			Name:      "samples_total",
			Help:      "Aligned samples offered to the render queue.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pose",
			Name:      "parse_errors_total",
			Help:      "Payloads discarded by the coordinate parser.",
		}),
		queueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "queue_drops_total",
			Help:      "Samples evicted from a full render queue.",
		}),
		processTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pose",
			Name:      "process_seconds",
			Help:      "Parse and align time per payload.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connection_events_total",
			Help:      "Connection lifecycle events.",
		}, []string{"event"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connected",
			Help:      "1 while a client connection is live.",
		}),
	}
	m.registry.MustRegister(
		m.frames, m.frameBytes, m.rejects, m.handlerErrors,
		m.samples, m.parseErrors, m.queueDrops, m.processTime,
		m.connections, m.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveFrame(size int) {
	m.frames.Inc()
	m.frameBytes.Observe(float64(size))
}

func (m *Metrics) ObserveReject(err error) {
	m.rejects.WithLabelValues(rejectReason(err)).Inc()
}

func (m *Metrics) ObserveHandlerError(error) {
	m.handlerErrors.Inc()
}

func (m *Metrics) ObserveSample(elapsed time.Duration, dropped bool) {
	m.samples.Inc()
	m.processTime.Observe(elapsed.Seconds())
	if dropped {
		m.queueDrops.Inc()
	}
}

func (m *Metrics) ObserveParseError(error) {
	m.parseErrors.Inc()
}

// ObserveEvent tracks listener lifecycle events.
func (m *Metrics) ObserveEvent(ev transport.Event) {
	m.connections.WithLabelValues(ev.Kind.String()).Inc()
	switch ev.Kind {
	case transport.EventConnected:
		m.connected.Set(1)
	case transport.EventDisconnected:
		m.connected.Set(0)
		if ev.Err != nil {
			m.connections.WithLabelValues("error").Inc()
		}
	}
}

// WatchMailbox exports the live depth of a render queue.
func (m *Metrics) WatchMailbox(box *engine.Mailbox) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "queue_depth",
		Help:      "Samples waiting for the next render tick.",
	}, func() float64 {
		return float64(box.Len())
	}))
}

// WatchHub exports per-sink samples the hub skipped because the sink was
// behind.
func (m *Metrics) WatchHub(hub *engine.Hub) {
	m.registry.MustRegister(&hubCollector{
		hub: hub,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "render", "sink_drops_total"),
			"Samples a display sink missed because its buffer was full.",
			[]string{"sink"}, nil,
		),
	})
}

type hubCollector struct {
	hub  *engine.Hub
	desc *prometheus.Desc
}

func (c *hubCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *hubCollector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.hub.Drops() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(d.Dropped), d.Sink)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrTooLarge):
		return "too_large"
	case errors.Is(err, protocol.ErrBadMarker):
		return "bad_marker"
	case errors.Is(err, protocol.ErrBadLength):
		return "bad_length"
	case errors.Is(err, protocol.ErrBadPayload):
		return "bad_payload"
	default:
		return "other"
	}
}
