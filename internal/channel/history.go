package channel

import "sync"

// history is a fixed-size ring of the most recent events on one channel
type history struct {
	entries []*Event
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

func newHistory(maxSize int) *history {
	if maxSize < 1 {
		maxSize = 1
	}
	return &history{
		entries: make([]*Event, maxSize),
		maxSize: maxSize,
	}
}

func (h *history) add(evt *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = evt
	h.head = (h.head + 1) % h.maxSize
	if h.size < h.maxSize {
		h.size++
	}
}

// recent returns up to limit events, newest first. A non-positive limit
// returns everything retained.
func (h *history) recent(limit int) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.size {
		limit = h.size
	}

	result := make([]Event, 0, limit)
	for i := 0; i < h.size && len(result) < limit; i++ {
		idx := (h.head - 1 - i + h.maxSize) % h.maxSize
		if evt := h.entries[idx]; evt != nil {
			result = append(result, *evt)
		}
	}
	return result
}
