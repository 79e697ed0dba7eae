package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/webguard/internal/broadcast"
)

const (
	sseEvent         = "update"
	sseKeepAlive     = 25 * time.Second
	sseRetryInterval = 3 * time.Second
)

// SSEHandler streams observations as Server-Sent Events named "update".
type SSEHandler struct {
	broadcaster *broadcast.Broadcaster
	queueSize   int
	logger      *slog.Logger
}

func NewSSEHandler(b *broadcast.Broadcaster, queueSize int, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{
		broadcaster: b,
		queueSize:   queueSize,
		logger:      logger,
	}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's WriteTimeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", sseRetryInterval.Milliseconds()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			h.logger.Error("Streaming unsupported by response writer")
		}
		return
	}

	observer := broadcast.NewQueueObserver(h.queueSize)
	h.broadcaster.Register(observer)

	h.logger.Info("Viewer connected",
		slog.String("transport", "sse"),
		slog.String("observer", observer.ID()),
		slog.String("from", r.RemoteAddr))

	defer func() {
		h.broadcaster.Deregister(observer)
		_ = observer.Close()

		h.logger.Info("Viewer disconnected",
			slog.String("transport", "sse"),
			slog.String("observer", observer.ID()))
	}()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-observer.Done():
			return

		case obs := <-observer.Updates():
			payload, err := obs.Payload()
			if err != nil {
				h.logger.Error("Failed to encode observation", slog.Any("err", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEvent, payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
