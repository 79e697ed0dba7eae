package prober

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/angeloszaimis/webguard/internal/metrics"
	"github.com/angeloszaimis/webguard/internal/observation"
)

const (
	DefaultInterval      = 10 * time.Second
	DefaultTimeout       = 8 * time.Second
	DefaultSlowThreshold = 1500 * time.Millisecond

	maxBodyDrain = 1 << 20
)

// Publisher receives every observation the prober produces.
type Publisher interface {
	Publish(obs observation.Observation)
}

// Publishers hands each observation to every publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(obs observation.Observation) {
	for _, p := range ps {
		p.Publish(obs)
	}
}

// Config describes the single monitored target.
type Config struct {
	Target        string
	Interval      time.Duration
	Timeout       time.Duration
	SlowThreshold time.Duration
	TimeFormat    string
}

// Prober runs the timed probe cycle against one target.
type Prober struct {
	cfg       Config
	client    *http.Client
	publisher Publisher
	collector *metrics.Collector
	logger    *slog.Logger
	clock     clock.Clock

	mutex      sync.Mutex
	lastStatus observation.Status
}

type Option func(*Prober)

// WithClock replaces the wall clock driving ticks and latency measurement.
func WithClock(c clock.Clock) Option {
	return func(p *Prober) {
		p.clock = c
	}
}

// WithHTTPClient replaces the client used for outbound checks.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// WithCollector reports cycle outcomes and skipped ticks to collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(p *Prober) {
		p.collector = collector
	}
}

// New creates a Prober. Zero durations fall back to the defaults.
func New(cfg Config, publisher Publisher, logger *slog.Logger, opts ...Option) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = observation.DefaultTimeFormat
	}

	p := &Prober{
		cfg:       cfg,
		client:    &http.Client{},
		publisher: publisher,
		logger:    logger,
		clock:     clock.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Config returns the effective configuration, defaults applied.
func (p *Prober) Config() Config {
	return p.cfg
}

// Run ticks every interval until ctx is cancelled. It blocks.
func (p *Prober) Run(ctx context.Context) {
	ticker := p.clock.Ticker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("Probe loop started",
		slog.String("target", p.cfg.Target),
		slog.Duration("interval", p.cfg.Interval),
		slog.Duration("timeout", p.cfg.Timeout))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Probe loop stopped",
				slog.String("target", p.cfg.Target))
			return

		case <-ticker.C:
			p.RunCycle(ctx)

			// A tick that arrived during the cycle is dropped, not queued.
			select {
			case <-ticker.C:
				p.logger.Debug("Probe still in flight at tick, skipping cycle",
					slog.String("target", p.cfg.Target))
				p.collector.Emit(metrics.MetricEvent{Type: metrics.EventTickSkipped})
			default:
			}
		}
	}
}

// RunCycle performs one probe, publishes the resulting observation and
// returns it. Cancelling ctx does not abort an in-flight probe.
func (p *Prober) RunCycle(ctx context.Context) observation.Observation {
	start := p.clock.Now()

	statusCode, err := p.probe(ctx)

	var obs observation.Observation
	if err != nil {
		obs = observation.Offline(start, p.cfg.TimeFormat)
		p.logger.Debug("Probe failed",
			slog.String("target", p.cfg.Target),
			slog.String("kind", failureKind(err)),
			slog.Any("err", err))
	} else {
		obs = observation.Online(start, p.clock.Since(start), p.cfg.TimeFormat)
		p.logger.Debug("Probe completed",
			slog.String("target", p.cfg.Target),
			slog.Int("status_code", statusCode),
			slog.Int64("latency_ms", obs.LatencyMillis))
	}

	p.record(obs, statusCode)
	p.publisher.Publish(obs)

	return obs
}

func (p *Prober) probe(ctx context.Context) (int, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.cfg.Target, nil)
	if err != nil {
		return 0, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyDrain)); err != nil {
		return 0, err
	}

	return res.StatusCode, nil
}

func (p *Prober) record(obs observation.Observation, statusCode int) {
	latency := time.Duration(obs.LatencyMillis) * time.Millisecond
	slow := obs.IsOnline() && latency > p.cfg.SlowThreshold

	p.mutex.Lock()
	previous := p.lastStatus
	p.lastStatus = obs.Status
	p.mutex.Unlock()

	if previous != obs.Status {
		if obs.IsOnline() {
			p.logger.Info("Target is up",
				slog.String("target", p.cfg.Target))
		} else {
			p.logger.Warn("Target is down",
				slog.String("target", p.cfg.Target))
		}
	}

	if slow {
		p.logger.Warn("High latency detected",
			slog.String("target", p.cfg.Target),
			slog.Int64("latency_ms", obs.LatencyMillis),
			slog.Duration("threshold", p.cfg.SlowThreshold))
	}

	p.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventProbeCompleted,
		Timestamp:  obs.StartedAt,
		Online:     obs.IsOnline(),
		Latency:    latency,
		StatusCode: statusCode,
		Slow:       slow,
	})
}

func failureKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	return "transport"
}
