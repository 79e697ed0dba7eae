//go:build ignore

// Watch connects to a running monitor over WebSocket and prints every
// observation it receives.
//
// Usage:
//
//	go run scripts/watch.go -addr localhost:3000
package main

import (
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

type update struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency"`
	Time    string `json:"time"`
}

func main() {
	addr := flag.String("addr", "localhost:3000", "monitor address")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	header := http.Header{"Origin": []string{"http://" + *addr}}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg update
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("%-8s %5dms  %s", msg.Status, msg.Latency, msg.Time)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
