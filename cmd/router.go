package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/webguard/internal/broadcast"
	"github.com/angeloszaimis/webguard/internal/dashboard"
	"github.com/angeloszaimis/webguard/internal/metrics"
	"github.com/angeloszaimis/webguard/internal/stream"
)

type routes struct {
	target      string
	queueSize   int
	page        *dashboard.Page
	tracker     *dashboard.Tracker
	broadcaster *broadcast.Broadcaster
	collector   *metrics.Collector
	logger      *slog.Logger
}

func setupRouter(r routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /", r.page)
	mux.Handle("GET /ws", stream.NewWebSocketHandler(r.broadcaster, r.queueSize, r.logger))
	mux.Handle("GET /events", stream.NewSSEHandler(r.broadcaster, r.queueSize, r.logger))
	mux.HandleFunc("GET /api/status", dashboard.StatusHandler(r.target, r.tracker, r.broadcaster))
	mux.HandleFunc("GET /metrics", r.collector.Handler(r.target))
	mux.Handle("GET /metrics/prometheus", r.collector.PrometheusHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
