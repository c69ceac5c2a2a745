package notification

import (
	"sync"

	"phishSentinel/domain"
)

// VerdictHub fans verdicts out to live subscribers of a tab. Publishing never
// blocks: a subscriber whose buffer is full misses the verdict.
type VerdictHub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]map[int]chan domain.TabVerdict
	buffer int
}

func NewVerdictHub(buffer int) *VerdictHub {
	if buffer <= 0 {
		buffer = 1
	}
	return &VerdictHub{
		subs:   make(map[int]map[int]chan domain.TabVerdict),
		buffer: buffer,
	}
}

// Subscribe returns a channel of verdicts for tabID and a cancel func that
// closes it.
func (h *VerdictHub) Subscribe(tabID int) (<-chan domain.TabVerdict, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan domain.TabVerdict, h.buffer)
	if h.subs[tabID] == nil {
		h.subs[tabID] = make(map[int]chan domain.TabVerdict)
	}
	h.subs[tabID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[tabID], id)
			if len(h.subs[tabID]) == 0 {
				delete(h.subs, tabID)
			}
			close(ch)
		})
	}
}

func (h *VerdictHub) Publish(tabID int, v domain.TabVerdict) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[tabID] {
		select {
		case ch <- v:
		default:
		}
	}
}

func (h *VerdictHub) Subscribers(tabID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[tabID])
}
