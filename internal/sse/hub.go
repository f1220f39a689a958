package sse

import (
	"sync"
)

// Event represents a server-sent event.
type Event struct {
	Type string // "progress", "done" or "failed"
	Data string // JSON payload
}

// Hub is an in-memory pub/sub hub for SSE events. Each topic remembers its
// last event so a subscriber arriving mid-analysis starts from the current
// state.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan Event]struct{}
	last    map[string]Event
}

// New creates a new SSE Hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]map[chan Event]struct{}),
		last:    make(map[string]Event),
	}
}

// AnalysisTopic is the topic progress for one analysis is published on.
func AnalysisTopic(id string) string {
	return "analysis:" + id
}

// Subscribe registers a listener on the given topic.
// Returns a receive-only channel and an unsubscribe function.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[chan Event]struct{})
	}
	h.clients[topic][ch] = struct{}{}
	if ev, ok := h.last[topic]; ok {
		ch <- ev
	}
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.clients[topic][ch]; ok {
				delete(h.clients[topic], ch)
				if len(h.clients[topic]) == 0 {
					delete(h.clients, topic)
				}
				close(ch)
			}
			h.mu.Unlock()
		})
	}

	return ch, unsub
}

// Publish sends an event to all subscribers on the given topic.
// Non-blocking: slow clients miss the event.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[topic] = event
	for ch := range h.clients[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Forget drops the remembered last event of a topic once nobody can be
// interested in it any more.
func (h *Hub) Forget(topic string) {
	h.mu.Lock()
	delete(h.last, topic)
	h.mu.Unlock()
}
