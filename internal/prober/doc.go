// Package prober implements the periodic reachability check of the monitored
// target.
//
// Every tick runs one cycle: a single GET bounded by the configured timeout,
// classified ONLINE when any response completes (whatever its status code)
// and OFFLINE on transport failure or timeout. The resulting Observation is
// handed synchronously to a Publisher. Cycles never fail and are never
// retried.
//
// Cycles run one at a time on the loop goroutine. A tick that fires while a
// cycle is still in flight is skipped rather than queued.
package prober
