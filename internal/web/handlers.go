package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AddisonG/timtamcam/internal/store"
)

// WeightSource exposes the monitor's latest readings.
type WeightSource interface {
	Snapshot() (current, baseline float64, hasBaseline bool)
}

// EventSource lists stored theft events, newest first.
type EventSource interface {
	Recent(limit int) ([]store.Event, error)
}

// TestCaptureFunc records a clip and posts it as a test.
// It is called from the POST /test handler in a goroutine.
type TestCaptureFunc func(ctx context.Context) error

// statusResponse is the GET /status payload.
type statusResponse struct {
	WeightG     float64 `json:"weight_g"`
	BaselineG   float64 `json:"baseline_g"`
	HasBaseline bool    `json:"has_baseline"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Weights     WeightSource
	Events      EventSource
	TestCapture TestCaptureFunc
	runningMu   sync.Mutex
	running     bool
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If testCapture is nil, POST /test will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, weights WeightSource, events EventSource, testCapture TestCaptureFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Weights:     weights,
		Events:      events,
		TestCapture: testCapture,
		staticFS:    staticFS,
	}
}

// HandleStatus returns the current weight and baseline as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if h.Weights != nil {
		resp.WeightG, resp.BaselineG, resp.HasBaseline = h.Weights.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleEvents returns recent theft events as JSON.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "event log not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = v
	}

	events, err := h.Events.Recent(limit)
	if err != nil {
		log.Printf("list events failed: %v", err)
		http.Error(w, "could not list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleTest handles POST /test to record and post a test clip.
func (h *Handlers) HandleTest(w http.ResponseWriter, r *http.Request) {
	if h.TestCapture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ctx := context.Background()
		if err := h.TestCapture(ctx); err != nil {
			h.Broadcaster.Broadcast("error", "Test capture failed: "+err.Error())
			log.Printf("test capture failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Test capture complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
