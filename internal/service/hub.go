package service

import (
	"sync"

	"order-tracking-service/internal/dto"
)

// Hub fans mirrored status updates out to live watchers of an order.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan dto.TrackingView]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan dto.TrackingView]struct{})}
}

// Subscribe registers a watcher for leadID. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(leadID string) (<-chan dto.TrackingView, func()) {
	ch := make(chan dto.TrackingView, 4)

	h.mu.Lock()
	if h.subs[leadID] == nil {
		h.subs[leadID] = make(map[chan dto.TrackingView]struct{})
	}
	h.subs[leadID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[leadID], ch)
			if len(h.subs[leadID]) == 0 {
				delete(h.subs, leadID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers v to every watcher of its order. Slow watchers miss
// updates rather than block ingestion.
func (h *Hub) Publish(v dto.TrackingView) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs[v.LeadID] {
		select {
		case ch <- v:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *Hub) Watchers(leadID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[leadID])
}
