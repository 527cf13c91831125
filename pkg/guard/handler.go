package guard

import (
	"sync"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

// Handler receives the events of every watched path. Calls come from worker
// goroutines but are serialized by the guard, so implementations need no
// locking of their own. A handler must not call Stop, Restart, RemovePath or
// ClearPaths: those join the worker that is running the callback.
type Handler interface {
	OnChanged(action model.Action, path string)
	OnStatus(status model.Status, workerID uint64, path string)
	OnError(code uint32, path string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Changed func(action model.Action, path string)
	Status  func(status model.Status, workerID uint64, path string)
	Error   func(code uint32, path string)
}

func (h HandlerFuncs) OnChanged(action model.Action, path string) {
	if h.Changed != nil {
		h.Changed(action, path)
	}
}

func (h HandlerFuncs) OnStatus(status model.Status, workerID uint64, path string) {
	if h.Status != nil {
		h.Status(status, workerID, path)
	}
}

func (h HandlerFuncs) OnError(code uint32, path string) {
	if h.Error != nil {
		h.Error(code, path)
	}
}

// dispatcher fans one event out to every registered handler while holding
// a single lock, so concurrent workers never overlap inside user code.
type dispatcher struct {
	mu       sync.Mutex
	handlers []Handler
}

func (d *dispatcher) add(h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

func (d *dispatcher) changed(action model.Action, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.handlers {
		h.OnChanged(action, path)
	}
}

func (d *dispatcher) status(status model.Status, workerID uint64, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.handlers {
		h.OnStatus(status, workerID, path)
	}
}

func (d *dispatcher) error(code uint32, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.handlers {
		h.OnError(code, path)
	}
}
