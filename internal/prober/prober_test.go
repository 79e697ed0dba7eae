package prober_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/webguard/internal/broadcast"
	"github.com/angeloszaimis/webguard/internal/metrics"
	"github.com/angeloszaimis/webguard/internal/observation"
	"github.com/angeloszaimis/webguard/internal/prober"
)

type recordingPublisher struct {
	mutex     sync.Mutex
	published []observation.Observation
}

func (r *recordingPublisher) Publish(obs observation.Observation) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.published = append(r.published, obs)
}

func (r *recordingPublisher) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.published)
}

func (r *recordingPublisher) Last() observation.Observation {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.published[len(r.published)-1]
}

func delayedTarget(delay time.Duration, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(status)
	}))
}

var _ = Describe("Prober", func() {
	var (
		log *slog.Logger
		pub *recordingPublisher
		ctx context.Context
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		pub = &recordingPublisher{}
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should fall back to the default timings for a zero config", func() {
			p := prober.New(prober.Config{Target: "http://localhost"}, pub, log)

			cfg := p.Config()
			Expect(cfg.Interval).To(Equal(10 * time.Second))
			Expect(cfg.Timeout).To(Equal(8 * time.Second))
			Expect(cfg.SlowThreshold).To(Equal(1500 * time.Millisecond))
			Expect(cfg.TimeFormat).To(Equal(observation.DefaultTimeFormat))
		})

		It("should keep explicit timings", func() {
			p := prober.New(prober.Config{
				Target:        "http://localhost",
				Interval:      time.Minute,
				Timeout:       time.Second,
				SlowThreshold: 300 * time.Millisecond,
				TimeFormat:    time.Kitchen,
			}, pub, log)

			cfg := p.Config()
			Expect(cfg.Interval).To(Equal(time.Minute))
			Expect(cfg.Timeout).To(Equal(time.Second))
			Expect(cfg.SlowThreshold).To(Equal(300 * time.Millisecond))
			Expect(cfg.TimeFormat).To(Equal(time.Kitchen))
		})
	})

	Describe("RunCycle", func() {
		It("should classify a 120ms response as ONLINE with its latency", func() {
			target := delayedTarget(120*time.Millisecond, http.StatusOK)
			defer target.Close()

			p := prober.New(prober.Config{Target: target.URL}, pub, log)
			obs := p.RunCycle(ctx)

			Expect(obs.Status).To(Equal(observation.StatusOnline))
			Expect(obs.LatencyMillis).To(BeNumerically(">=", 120))
			Expect(obs.LatencyMillis).To(BeNumerically("<", 2000))
			Expect(obs.Time).NotTo(BeEmpty())
		})

		It("should treat error status codes as reachable", func() {
			target := delayedTarget(0, http.StatusInternalServerError)
			defer target.Close()

			p := prober.New(prober.Config{Target: target.URL}, pub, log)

			Expect(p.RunCycle(ctx).Status).To(Equal(observation.StatusOnline))
		})

		It("should classify a timeout as OFFLINE with zero latency", func() {
			target := delayedTarget(2*time.Second, http.StatusOK)
			defer target.Close()

			p := prober.New(prober.Config{
				Target:   target.URL,
				Timeout:  100 * time.Millisecond,
				Interval: time.Second,
			}, pub, log)
			obs := p.RunCycle(ctx)

			Expect(obs.Status).To(Equal(observation.StatusOffline))
			Expect(obs.LatencyMillis).To(BeZero())
		})

		It("should classify a refused connection as OFFLINE", func() {
			target := delayedTarget(0, http.StatusOK)
			url := target.URL
			target.Close()

			p := prober.New(prober.Config{Target: url}, pub, log)
			obs := p.RunCycle(ctx)

			Expect(obs.Status).To(Equal(observation.StatusOffline))
			Expect(obs.LatencyMillis).To(BeZero())
		})

		It("should classify an unusable target as OFFLINE", func() {
			p := prober.New(prober.Config{Target: "://not a url"}, pub, log)

			Expect(p.RunCycle(ctx).Status).To(Equal(observation.StatusOffline))
		})

		It("should publish exactly one observation per cycle", func() {
			target := delayedTarget(0, http.StatusOK)
			defer target.Close()

			p := prober.New(prober.Config{Target: target.URL}, pub, log)
			for i := 0; i < 3; i++ {
				obs := p.RunCycle(ctx)
				Expect(pub.Last()).To(Equal(obs))
			}

			Expect(pub.Count()).To(Equal(3))
		})

		It("should still produce an observation with zero observers", func() {
			target := delayedTarget(0, http.StatusOK)
			defer target.Close()

			b := broadcast.New(log, nil)
			p := prober.New(prober.Config{Target: target.URL}, b, log)

			Expect(func() { p.RunCycle(ctx) }).NotTo(Panic())
			Expect(b.Len()).To(BeZero())
		})

		It("should fan the observation out to connected observers", func() {
			target := delayedTarget(0, http.StatusOK)
			defer target.Close()

			b := broadcast.New(log, nil)
			observers := []*broadcast.QueueObserver{
				broadcast.NewQueueObserver(1),
				broadcast.NewQueueObserver(1),
				broadcast.NewQueueObserver(1),
			}
			for _, o := range observers {
				b.Register(o)
			}

			obs := prober.New(prober.Config{Target: target.URL}, b, log).RunCycle(ctx)

			for _, o := range observers {
				Expect(o.Updates()).To(Receive(Equal(obs)))
			}
		})

		It("should not abort an in-flight probe when the context is cancelled", func() {
			target := delayedTarget(100*time.Millisecond, http.StatusOK)
			defer target.Close()

			cancelled, cancel := context.WithCancel(context.Background())
			cancel()

			p := prober.New(prober.Config{Target: target.URL}, pub, log)

			Expect(p.RunCycle(cancelled).Status).To(Equal(observation.StatusOnline))
		})

		It("should measure latency with the injected clock", func() {
			mock := clock.NewMock()
			target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mock.Add(250 * time.Millisecond)
			}))
			defer target.Close()

			p := prober.New(prober.Config{Target: target.URL}, pub, log, prober.WithClock(mock))
			obs := p.RunCycle(ctx)

			Expect(obs.LatencyMillis).To(Equal(int64(250)))
			Expect(obs.StartedAt).To(Equal(time.Unix(0, 0)))
		})

		It("should report outcomes to the collector", func() {
			collectorCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			collector := metrics.NewCollector(10, log)
			collector.Start(collectorCtx)

			target := delayedTarget(0, http.StatusTeapot)
			defer target.Close()

			p := prober.New(prober.Config{Target: target.URL}, pub, log, prober.WithCollector(collector))
			p.RunCycle(ctx)

			Eventually(func() int64 {
				return collector.Snapshot(target.URL).StatusCodes[http.StatusTeapot]
			}).Should(Equal(int64(1)))
		})

		It("should flag latency above the slow threshold", func() {
			collectorCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			collector := metrics.NewCollector(10, log)
			collector.Start(collectorCtx)

			target := delayedTarget(60*time.Millisecond, http.StatusOK)
			defer target.Close()

			p := prober.New(prober.Config{
				Target:        target.URL,
				SlowThreshold: 10 * time.Millisecond,
			}, pub, log, prober.WithCollector(collector))
			p.RunCycle(ctx)

			Eventually(func() int64 {
				return collector.Snapshot(target.URL).Slow
			}).Should(Equal(int64(1)))
		})
	})

	Describe("Run", func() {
		const interval = 10 * time.Second

		var (
			mock   *clock.Mock
			target *httptest.Server
			hits   atomic.Int64
		)

		BeforeEach(func() {
			mock = clock.NewMock()
			hits.Store(0)
			target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
			}))
		})

		AfterEach(func() {
			target.Close()
		})

		It("should run a cycle on every tick and stop on cancel", func() {
			runCtx, cancel := context.WithCancel(context.Background())
			p := prober.New(prober.Config{Target: target.URL, Interval: interval}, pub, log, prober.WithClock(mock))

			done := make(chan struct{})
			go func() {
				defer close(done)
				p.Run(runCtx)
			}()

			Eventually(func() int {
				mock.Add(interval)
				return pub.Count()
			}).Should(BeNumerically(">=", 1))

			before := pub.Count()
			mock.Add(interval)
			Eventually(pub.Count).Should(BeNumerically(">", before))

			cancel()
			Eventually(done).Should(BeClosed())
		})

		It("should not run cycles before the first tick", func() {
			runCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			p := prober.New(prober.Config{Target: target.URL, Interval: interval}, pub, log, prober.WithClock(mock))

			go p.Run(runCtx)

			Consistently(pub.Count, 100*time.Millisecond).Should(BeZero())
		})

		It("should skip a tick that fires while a cycle is in flight", func() {
			release := make(chan struct{})
			var slowHits atomic.Int64
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				slowHits.Add(1)
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer slow.Close()

			collectorCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			collector := metrics.NewCollector(10, log)
			collector.Start(collectorCtx)

			p := prober.New(prober.Config{
				Target:   slow.URL,
				Interval: interval,
				Timeout:  time.Minute,
			}, pub, log, prober.WithClock(mock), prober.WithCollector(collector))
			go p.Run(collectorCtx)

			Eventually(func() int64 {
				mock.Add(interval)
				return slowHits.Load()
			}).Should(Equal(int64(1)))

			mock.Add(interval)
			close(release)

			Eventually(func() int64 {
				return collector.Snapshot(slow.URL).TicksSkipped
			}).Should(Equal(int64(1)))
			Consistently(pub.Count, 100*time.Millisecond).Should(Equal(1))
			Expect(slowHits.Load()).To(Equal(int64(1)))
		})
	})
})

var _ = Describe("Publishers", func() {
	It("should hand the observation to each publisher in order", func() {
		first := &recordingPublisher{}
		second := &recordingPublisher{}
		obs := observation.Offline(time.Now(), "")

		prober.Publishers{first, second}.Publish(obs)

		Expect(first.Last()).To(Equal(obs))
		Expect(second.Last()).To(Equal(obs))
	})
})
