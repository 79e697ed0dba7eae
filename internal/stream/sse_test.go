package stream_test

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/webguard/internal/broadcast"
	"github.com/angeloszaimis/webguard/internal/observation"
	"github.com/angeloszaimis/webguard/internal/stream"
)

var _ = Describe("SSEHandler", func() {
	var (
		b      *broadcast.Broadcaster
		server *httptest.Server
	)

	BeforeEach(func() {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		b = broadcast.New(log, nil)
		server = httptest.NewServer(stream.NewSSEHandler(b, 4, log))
	})

	AfterEach(func() {
		server.Close()
	})

	open := func(ctx context.Context) *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should stream observations as update events", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		resp := open(ctx)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		Eventually(b.Len).Should(Equal(1))
		obs := observation.Online(time.Now(), 77*time.Millisecond, "")
		b.Publish(obs)

		payload, err := obs.Payload()
		Expect(err).NotTo(HaveOccurred())

		reader := bufio.NewReader(resp.Body)
		var lines []string
		for len(lines) < 2 || lines[len(lines)-1] != "data: "+string(payload) {
			line, err := reader.ReadString('\n')
			Expect(err).NotTo(HaveOccurred())
			lines = append(lines, strings.TrimRight(line, "\n"))
		}
		Expect(lines).To(ContainElement("event: update"))
	})

	It("should deregister the observer when the client goes away", func() {
		ctx, cancel := context.WithCancel(context.Background())

		resp := open(ctx)
		Eventually(b.Len).Should(Equal(1))

		cancel()
		resp.Body.Close()

		Eventually(b.Len).Should(BeZero())
	})
})
