package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "webguard"

// exporter mirrors processed events into a private Prometheus registry.
type exporter struct {
	registry     *prometheus.Registry
	cycles       *prometheus.CounterVec
	latency      prometheus.Histogram
	up           prometheus.Gauge
	ticksSkipped prometheus.Counter
	observers    prometheus.Gauge
	deliveries   *prometheus.CounterVec
}

func newExporter() *exporter {
	e := &exporter{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "cycles_total",
			Help:      "Probe cycles by classified status.",
		}, []string{"status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "Latency of probe cycles that reached the target.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 1.5, 2.5, 5, 8},
		}),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_up",
			Help:      "1 if the last probe cycle reached the target.",
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "ticks_skipped_total",
			Help:      "Timer ticks dropped because a cycle was still in flight.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Currently registered observers.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-observer delivery outcomes.",
		}, []string{"outcome"}),
	}

	e.registry.MustRegister(
		e.cycles,
		e.latency,
		e.up,
		e.ticksSkipped,
		e.observers,
		e.deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return e
}

func (e *exporter) observe(event MetricEvent) {
	switch event.Type {
	case EventProbeCompleted:
		if event.Online {
			e.cycles.WithLabelValues("online").Inc()
			e.latency.Observe(event.Latency.Seconds())
			e.up.Set(1)
		} else {
			e.cycles.WithLabelValues("offline").Inc()
			e.up.Set(0)
		}

	case EventTickSkipped:
		e.ticksSkipped.Inc()

	case EventObserverRegistered:
		e.observers.Inc()

	case EventObserverDeregistered:
		e.observers.Dec()

	case EventDelivery:
		e.deliveries.WithLabelValues(string(event.Outcome)).Inc()
	}
}
