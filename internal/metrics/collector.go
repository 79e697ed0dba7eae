package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventProbeCompleted       EventType = "probe_completed"
	EventTickSkipped          EventType = "tick_skipped"
	EventObserverRegistered   EventType = "observer_registered"
	EventObserverDeregistered EventType = "observer_deregistered"
	EventDelivery             EventType = "delivery"
)

// Outcome classifies a single delivery attempt to one observer.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeDropped   Outcome = "dropped"
	OutcomeFailed    Outcome = "failed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Online     bool
	Latency    time.Duration
	StatusCode int
	Slow       bool
	Outcome    Outcome
}

type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	exporter *exporter
	logger   *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:  make(chan MetricEvent, bufferSize),
		metrics:  NewMetrics(),
		exporter: newExporter(),
		logger:   logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. Events are dropped when the buffer
// is full. A nil collector ignores every event.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	c.exporter.observe(event)

	switch event.Type {
	case EventProbeCompleted:
		c.metrics.RecordCycle(event.Online, event.Latency, event.StatusCode, event.Slow, event.Timestamp)

	case EventTickSkipped:
		c.metrics.RecordTickSkipped()

	case EventObserverRegistered:
		c.metrics.ObserverRegistered()

	case EventObserverDeregistered:
		c.metrics.ObserverDeregistered()

	case EventDelivery:
		c.metrics.RecordDelivery(event.Outcome)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(target string) Snapshot {
	return c.metrics.Snapshot(target)
}
