package sse

import (
	"sync"
)

// Event names published for cached monthly aggregates.
const (
	EventAggregateInvalidated = "aggregate.invalidated"
	EventAggregateReady       = "aggregate.ready"
	EventAggregateFailed      = "aggregate.failed"
)

// Event represents an SSE event to be sent to subscribers
type Event struct {
	CompanyID string
	Event     string
	Data      interface{}
}

// Hub manages SSE subscribers and event broadcasting, keyed by company
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub creates a new SSE Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber for a company and returns the event channel and cleanup function
func (h *Hub) Subscribe(companyID string) (chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)

	if h.subscribers[companyID] == nil {
		h.subscribers[companyID] = make(map[chan Event]struct{})
	}
	h.subscribers[companyID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[companyID], ch)
			close(ch)
			if len(h.subscribers[companyID]) == 0 {
				delete(h.subscribers, companyID)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of a company
func (h *Hub) Publish(companyID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event.CompanyID = companyID
	if subs, ok := h.subscribers[companyID]; ok {
		for ch := range subs {
			select {
			case ch <- event:
			default:
				// Skip if channel is full (non-blocking to prevent deadlock)
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers for a company
func (h *Hub) SubscriberCount(companyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[companyID]; ok {
		return len(subs)
	}
	return 0
}

// TotalSubscribers returns the total number of active subscribers across all companies
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
