package server

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
)

type subscriber struct {
	prefix  string
	frames  chan *protocol.Data
	dropped atomic.Uint64
}

// hub fans frames out to subscribers without ever blocking the publisher.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscriber)}
}

func (h *hub) subscribe(prefix string, size int) (*subscriber, func()) {
	sub := &subscriber{prefix: prefix, frames: make(chan *protocol.Data, size)}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.frames)
		}
		h.mu.Unlock()
	}
	return sub, cancel
}

// publish hands frame to every subscriber interested in path. root marks
// frames about a watched root rather than a file below it.
func (h *hub) publish(path string, root bool, frame *protocol.Data) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !matchPrefix(sub.prefix, path, root) {
			continue
		}
		select {
		case sub.frames <- frame:
		default:
			sub.dropped.Add(1)
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// matchPrefix reports whether path lies at or below prefix. A root also
// matches every prefix inside it.
func matchPrefix(prefix, path string, root bool) bool {
	if prefix == "" || strings.HasPrefix(path, prefix) {
		return true
	}
	return root && strings.HasPrefix(prefix, path)
}
