package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event is one chat exchange pushed to SSE clients.
type Event struct {
	Time    string `json:"time"`
	Session string `json:"session,omitempty"`
	Intent  string `json:"intent,omitempty"`
	Message string `json:"message"`
	Reply   string `json:"reply"`
}

// EventBus fans chat events out to SSE clients and keeps a ring buffer of
// recent events for late joiners.
type EventBus struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	ring     [][]byte
	ringSize int
	ringPos  int
	ringLen  int
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(size int) *EventBus {
	return &EventBus{
		clients:  make(map[chan []byte]struct{}),
		ring:     make([][]byte, size),
		ringSize: size,
	}
}

// Publish adds an event to the ring buffer and fans it out to all SSE
// clients.
func (eb *EventBus) Publish(evt Event) {
	if evt.Time == "" {
		evt.Time = time.Now().Format("2006-01-02 15:04:05")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	eb.mu.Lock()
	eb.ring[eb.ringPos] = data
	eb.ringPos = (eb.ringPos + 1) % eb.ringSize
	if eb.ringLen < eb.ringSize {
		eb.ringLen++
	}
	clients := make([]chan []byte, 0, len(eb.clients))
	for ch := range eb.clients {
		clients = append(clients, ch)
	}
	eb.mu.Unlock()

	for _, ch := range clients {
		select {
		case ch <- data:
		default:
			// Drop event for slow clients.
		}
	}
}

// Subscribe returns a channel that receives events and an unsubscribe
// function.
func (eb *EventBus) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 64)
	eb.mu.Lock()
	eb.clients[ch] = struct{}{}
	eb.mu.Unlock()
	return ch, func() {
		eb.mu.Lock()
		delete(eb.clients, ch)
		eb.mu.Unlock()
	}
}

// Recent returns the ring buffer contents in chronological order.
func (eb *EventBus) Recent() [][]byte {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	result := make([][]byte, 0, eb.ringLen)
	start := (eb.ringPos - eb.ringLen + eb.ringSize) % eb.ringSize
	for i := 0; i < eb.ringLen; i++ {
		idx := (start + i) % eb.ringSize
		if eb.ring[idx] != nil {
			result = append(result, eb.ring[idx])
		}
	}
	return result
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := s.eventBus.Subscribe()
	defer unsub()

	for _, data := range s.eventBus.Recent() {
		fmt.Fprintf(w, "event: chat\ndata: %s\n\n", data)
	}
	flusher.Flush()

	for {
		select {
		case data := <-ch:
			fmt.Fprintf(w, "event: chat\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
