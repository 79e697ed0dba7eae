package broadcast

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/angeloszaimis/webguard/internal/observation"
)

var (
	ErrQueueFull      = errors.New("observer queue full")
	ErrObserverClosed = errors.New("observer closed")
)

// Observer is a connected recipient of live observations.
// Receive must return promptly; a returned error only affects this observer.
type Observer interface {
	ID() string
	Receive(obs observation.Observation) error
}

// QueueObserver buffers observations for a single connection in a bounded
// queue drained by the connection's writer.
type QueueObserver struct {
	id     string
	queue  chan observation.Observation
	done   chan struct{}
	mutex  sync.Mutex
	closed bool
}

// NewQueueObserver creates an observer with room for size pending
// observations. Sizes below 1 are raised to 1.
func NewQueueObserver(size int) *QueueObserver {
	if size < 1 {
		size = 1
	}

	return &QueueObserver{
		id:    uuid.NewString(),
		queue: make(chan observation.Observation, size),
		done:  make(chan struct{}),
	}
}

func (q *QueueObserver) ID() string {
	return q.id
}

// Receive enqueues obs without blocking.
func (q *QueueObserver) Receive(obs observation.Observation) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return ErrObserverClosed
	}

	select {
	case q.queue <- obs:
		return nil
	default:
		return ErrQueueFull
	}
}

// Updates returns the queue in delivery order.
func (q *QueueObserver) Updates() <-chan observation.Observation {
	return q.queue
}

// Done is closed once the observer has been closed.
func (q *QueueObserver) Done() <-chan struct{} {
	return q.done
}

// Close stops further deliveries. Pending observations are abandoned.
// Close is idempotent.
func (q *QueueObserver) Close() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
