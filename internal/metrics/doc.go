// Package metrics provides real-time statistics for the monitor.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Probe cycle counts split by ONLINE / OFFLINE
//   - Latency of reachable cycles with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution of completed probes
//   - Observer registrations and per-observer delivery outcomes
//
// The collector runs in a dedicated goroutine and never blocks the probe loop
// or a broadcast: Emit drops the event when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventProbeCompleted,
//		Online:     true,
//		Latency:    150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot("https://example.com")
//
// The same events feed a Prometheus registry served by PrometheusHandler.
package metrics
