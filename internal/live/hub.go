package live

import (
	"encoding/json"
	"sync"

	"vehicle-sense/gateway/internal/domain"
)

const subscriberBuffer = 16

// Hub fans successful predictions out to in-process subscribers (the
// websocket feed). Publishing never blocks: a subscriber that cannot keep
// up misses events instead of stalling the request path.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a consumer. The returned cancel func must be called
// exactly once; after it returns the channel will receive no more events.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts a prediction event. Raw is excluded from the payload.
func (h *Hub) Publish(rec *domain.AuditRecord) {
	event, err := json.Marshal(domain.AuditRecord{
		ID:        rec.ID,
		Category:  rec.Category,
		Input:     rec.Input,
		Decision:  rec.Decision,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
