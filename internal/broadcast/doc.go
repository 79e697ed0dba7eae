// Package broadcast fans every Observation out to the set of currently
// registered observers.
//
// Membership is the only state: there is no replay of past observations, and
// an observer that is deregistered never receives another one. Delivery is
// best-effort per observer. Receive implementations must not block; the
// QueueObserver provided here hands each observation to a bounded queue and
// drops it when the queue is full so a stalled viewer cannot delay the probe
// loop.
//
// Usage:
//
//	b := broadcast.New(logger, collector)
//	obs := broadcast.NewQueueObserver(16)
//	b.Register(obs)
//	defer b.Deregister(obs)
//
//	for {
//	    select {
//	    case o := <-obs.Updates():
//	        // write o to the connection
//	    case <-obs.Done():
//	        return
//	    }
//	}
package broadcast
