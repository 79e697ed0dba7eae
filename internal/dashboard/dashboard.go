package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/webguard/internal/observation"
)

//go:embed templates/index.html.tmpl
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html.tmpl"))

// PageData is rendered into the dashboard page.
type PageData struct {
	Target              string
	Interval            time.Duration
	SlowThresholdMillis int64
}

// Page renders the dashboard once and serves it on "/".
type Page struct {
	body []byte
}

func NewPage(data PageData) (*Page, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render dashboard: %w", err)
	}
	return &Page{body: buf.Bytes()}, nil
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(p.body)
}

// Tracker remembers the most recent observation for status requests.
type Tracker struct {
	mutex  sync.RWMutex
	latest *observation.Observation
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Publish(obs observation.Observation) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.latest = &obs
}

func (t *Tracker) Latest() (observation.Observation, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.latest == nil {
		return observation.Observation{}, false
	}
	return *t.latest, true
}

// ObserverCounter reports how many viewers are connected.
type ObserverCounter interface {
	Len() int
}

type statusResponse struct {
	Target      string                   `json:"target"`
	Observers   int                      `json:"observers"`
	Observation *observation.Observation `json:"observation"`
}

// StatusHandler serves the latest observation as JSON. Before the first
// cycle completes the observation field is null.
func StatusHandler(target string, tracker *Tracker, observers ObserverCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Target:    target,
			Observers: observers.Len(),
		}
		if obs, ok := tracker.Latest(); ok {
			resp.Observation = &obs
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
