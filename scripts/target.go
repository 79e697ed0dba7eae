//go:build ignore

// Target is a test HTTP server for exercising the monitor. Responses can be
// delayed and a share of connections can be dropped to simulate an outage.
//
// Usage:
//
//	go run scripts/target.go -port 8081 -delay 200ms -jitter 2s -fail 0.2
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type response struct {
	RequestID string `json:"request_id"`
	DelayMS   int64  `json:"delay_ms"`
}

func main() {
	port := flag.String("port", "8081", "port to listen on")
	delay := flag.Duration("delay", 0, "base delay before responding")
	jitter := flag.Duration("jitter", 0, "random extra delay added to each response")
	failRate := flag.Float64("fail", 0, "fraction of requests whose connection is dropped (0-1)")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()

		if rand.Float64() < *failRate {
			log.Printf("[%s] %s %s dropped", id, r.Method, r.URL.Path)
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		wait := *delay
		if *jitter > 0 {
			wait += time.Duration(rand.Int64N(int64(*jitter)))
		}
		time.Sleep(wait)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response{RequestID: id, DelayMS: wait.Milliseconds()}); err != nil {
			log.Printf("[%s] encode failed: %v", id, err)
			return
		}
		log.Printf("[%s] %s %s answered after %s", id, r.Method, r.URL.Path, wait)
	})

	addr := ":" + *port
	log.Printf("Target listening on %s (delay=%s jitter=%s fail=%.2f)", addr, *delay, *jitter, *failRate)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
