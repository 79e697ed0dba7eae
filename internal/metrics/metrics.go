package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex        sync.RWMutex
	cycles       int64
	online       int64
	offline      int64
	slow         int64
	ticksSkipped int64
	latencies    []time.Duration
	statusCodes  map[int]int64
	observers    int64
	delivered    int64
	dropped      int64
	failed       int64
	lastOnline   bool
	lastChange   time.Time
	hasCycle     bool
	startTime    time.Time
}

type Snapshot struct {
	Target       string        `json:"target"`
	Uptime       time.Duration `json:"uptime"`
	Cycles       int64         `json:"cycles"`
	Online       int64         `json:"online"`
	Offline      int64         `json:"offline"`
	Slow         int64         `json:"slow"`
	TicksSkipped int64         `json:"ticks_skipped"`
	Availability float64       `json:"availability"`
	Latency      LatencyStats  `json:"latency"`
	StatusCodes  map[int]int64 `json:"status_codes"`
	Observers    ObserverStats `json:"observers"`
	LastChange   *time.Time    `json:"last_change,omitempty"`
}

type LatencyStats struct {
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

type ObserverStats struct {
	Connected int64 `json:"connected"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

func (m *Metrics) RecordCycle(online bool, latency time.Duration, statusCode int, slow bool, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cycles++
	if online {
		m.online++
		m.latencies = append(m.latencies, latency)
		if len(m.latencies) > maxLatencySamples {
			m.latencies = m.latencies[1:]
		}
	} else {
		m.offline++
	}
	if slow {
		m.slow++
	}
	if statusCode > 0 {
		m.statusCodes[statusCode]++
	}

	if !m.hasCycle || m.lastOnline != online {
		m.lastChange = at
	}
	m.hasCycle = true
	m.lastOnline = online
}

func (m *Metrics) RecordTickSkipped() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ticksSkipped++
}

func (m *Metrics) ObserverRegistered() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.observers++
}

func (m *Metrics) ObserverDeregistered() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.observers > 0 {
		m.observers--
	}
}

func (m *Metrics) RecordDelivery(outcome Outcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch outcome {
	case OutcomeDelivered:
		m.delivered++
	case OutcomeDropped:
		m.dropped++
	case OutcomeFailed:
		m.failed++
	}
}

func (m *Metrics) Snapshot(target string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Target:       target,
		Uptime:       time.Since(m.startTime),
		Cycles:       m.cycles,
		Online:       m.online,
		Offline:      m.offline,
		Slow:         m.slow,
		TicksSkipped: m.ticksSkipped,
		StatusCodes:  make(map[int]int64, len(m.statusCodes)),
		Observers: ObserverStats{
			Connected: m.observers,
			Delivered: m.delivered,
			Dropped:   m.dropped,
			Failed:    m.failed,
		},
	}

	for code, count := range m.statusCodes {
		snap.StatusCodes[code] = count
	}

	if m.cycles > 0 {
		snap.Availability = float64(m.online) / float64(m.cycles)
	}

	if m.hasCycle {
		changed := m.lastChange
		snap.LastChange = &changed
	}

	if len(m.latencies) > 0 {
		sorted := make([]time.Duration, len(m.latencies))
		copy(sorted, m.latencies)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.Latency = LatencyStats{
			Avg: average(sorted),
			P50: percentile(sorted, 0.50),
			P95: percentile(sorted, 0.95),
			P99: percentile(sorted, 0.99),
		}
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
