package broadcast

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/angeloszaimis/webguard/internal/metrics"
	"github.com/angeloszaimis/webguard/internal/observation"
)

// Broadcaster tracks connected observers and delivers every published
// observation to each of them.
type Broadcaster struct {
	mutex     sync.RWMutex
	publishMu sync.Mutex
	observers map[string]Observer
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates an empty Broadcaster. collector may be nil.
func New(logger *slog.Logger, collector *metrics.Collector) *Broadcaster {
	return &Broadcaster{
		observers: make(map[string]Observer),
		collector: collector,
		logger:    logger,
	}
}

// Register adds an observer to the live set. It receives only observations
// published after Register returns.
func (b *Broadcaster) Register(o Observer) {
	b.mutex.Lock()
	_, exists := b.observers[o.ID()]
	b.observers[o.ID()] = o
	count := len(b.observers)
	b.mutex.Unlock()

	if exists {
		return
	}

	b.collector.Emit(metrics.MetricEvent{Type: metrics.EventObserverRegistered})
	b.logger.Debug("Observer registered",
		slog.String("observer", o.ID()),
		slog.Int("observers", count))
}

// Deregister removes an observer. Removing an absent observer is a no-op.
// Once Deregister returns no publish will reach o.
func (b *Broadcaster) Deregister(o Observer) {
	b.mutex.Lock()
	_, exists := b.observers[o.ID()]
	delete(b.observers, o.ID())
	count := len(b.observers)
	b.mutex.Unlock()

	if !exists {
		return
	}

	b.collector.Emit(metrics.MetricEvent{Type: metrics.EventObserverDeregistered})
	b.logger.Debug("Observer deregistered",
		slog.String("observer", o.ID()),
		slog.Int("observers", count))
}

// Publish offers obs to every registered observer. A failure for one
// observer is logged and counted, never propagated.
func (b *Broadcaster) Publish(obs observation.Observation) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, o := range b.observers {
		err := b.deliver(o, obs)

		switch {
		case err == nil:
			b.emitOutcome(metrics.OutcomeDelivered)
		case errors.Is(err, ErrQueueFull):
			b.emitOutcome(metrics.OutcomeDropped)
			b.logger.Debug("Observer queue full, dropping update",
				slog.String("observer", o.ID()))
		default:
			b.emitOutcome(metrics.OutcomeFailed)
			b.logger.Warn("Delivery to observer failed",
				slog.String("observer", o.ID()),
				slog.Any("err", err))
		}
	}
}

// Len returns the number of registered observers.
func (b *Broadcaster) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.observers)
}

// Close deregisters every observer and closes those implementing io.Closer.
func (b *Broadcaster) Close() error {
	b.mutex.Lock()
	observers := b.observers
	b.observers = make(map[string]Observer)
	b.mutex.Unlock()

	var err error
	for _, o := range observers {
		b.collector.Emit(metrics.MetricEvent{Type: metrics.EventObserverDeregistered})
		if closer, ok := o.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}

	return err
}

func (b *Broadcaster) deliver(o Observer, obs observation.Observation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer %s panicked: %v", o.ID(), r)
		}
	}()

	return o.Receive(obs)
}

func (b *Broadcaster) emitOutcome(outcome metrics.Outcome) {
	b.collector.Emit(metrics.MetricEvent{
		Type:    metrics.EventDelivery,
		Outcome: outcome,
	})
}
