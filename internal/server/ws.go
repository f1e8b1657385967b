package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/landmark"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler streams per-frame pipeline outputs to WebSocket clients. Each
// connection holds its own subscription; a client that stops reading loses
// frames instead of stalling the pipeline.
type LiveHandler struct {
	app *app.App
}

// NewLiveHandler creates a new LiveHandler over the given app.
func NewLiveHandler(a *app.App) *LiveHandler {
	return &LiveHandler{app: a}
}

// ServeHTTP handles WebSocket upgrade requests for the live output stream.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.app.Subscribe()
	defer h.app.Unsubscribe(ch)

	// Drain client messages so closes and pings are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case out := <-ch:
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}
}

// IngestHandler accepts one external detector connection pushing landmark
// frames as JSON text messages, and feeds them into the pipeline's channel
// source. Malformed frames are counted and skipped.
type IngestHandler struct {
	source *landmark.ChannelSource

	mu        sync.Mutex
	active    bool
	malformed atomic.Int64
}

// NewIngestHandler creates a new IngestHandler feeding the given source.
func NewIngestHandler(src *landmark.ChannelSource) *IngestHandler {
	return &IngestHandler{source: src}
}

// Malformed reports how many unparseable frames have been skipped.
func (h *IngestHandler) Malformed() int64 {
	return h.malformed.Load()
}

// ServeHTTP handles the detector's WebSocket connection. Only one detector
// may be connected at a time; a second connection is refused.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.active {
		h.mu.Unlock()
		http.Error(w, "Detector already connected", http.StatusConflict)
		return
	}
	h.active = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.active = false
		h.mu.Unlock()
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	log.Println("Detector connected")
	defer log.Println("Detector disconnected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame landmark.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.malformed.Add(1)
			continue
		}
		// Publish drops when the pipeline is backlogged; the source keeps
		// its own count of dropped frames
		h.source.Publish(&frame)
	}
}
