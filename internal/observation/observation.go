package observation

import (
	"encoding/json"
	"time"
)

// Status is the reachability classification of a probe cycle.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// DefaultTimeFormat renders the cycle start as a local wall-clock time,
// e.g. "3:04:05 PM".
const DefaultTimeFormat = "3:04:05 PM"

// Observation is the immutable outcome of a single probe cycle.
// Only Status, LatencyMillis and Time go on the wire.
type Observation struct {
	Status        Status    `json:"status"`
	LatencyMillis int64     `json:"latency"`
	Time          string    `json:"time"`
	StartedAt     time.Time `json:"-"`
}

// Online builds an ONLINE observation for a cycle that started at start and
// completed after latency.
func Online(start time.Time, latency time.Duration, layout string) Observation {
	ms := latency.Milliseconds()
	if ms < 0 {
		ms = 0
	}

	return Observation{
		Status:        StatusOnline,
		LatencyMillis: ms,
		Time:          format(start, layout),
		StartedAt:     start,
	}
}

// Offline builds an OFFLINE observation. Latency is always zero.
func Offline(start time.Time, layout string) Observation {
	return Observation{
		Status:        StatusOffline,
		LatencyMillis: 0,
		Time:          format(start, layout),
		StartedAt:     start,
	}
}

// IsOnline reports whether the target was reachable.
func (o Observation) IsOnline() bool {
	return o.Status == StatusOnline
}

// Payload returns the JSON message sent to observers.
func (o Observation) Payload() ([]byte, error) {
	return json.Marshal(o)
}

func format(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultTimeFormat
	}
	return t.Local().Format(layout)
}
