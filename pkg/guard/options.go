package guard

import (
	"log"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
	"github.com/ManouchehrRasoulli/fsguard/internal/volume"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

const (
	// DefaultJoinWarning is how long Stop waits for a worker before it logs
	// a slow-shutdown warning. It keeps waiting afterwards.
	DefaultJoinWarning = 5 * time.Second

	minBufferSize = 4 * 1024
)

type Option func(g *Guard)

// WithHandler registers h for change, status and error events. It may be
// given more than once; handlers are called in registration order.
func WithHandler(h Handler) Option {
	return func(g *Guard) {
		g.dispatch.add(h)
	}
}

func WithChangeHook(hook func(action model.Action, path string)) Option {
	return WithHandler(HandlerFuncs{Changed: hook})
}

func WithStatusHook(hook func(status model.Status, workerID uint64, path string)) Option {
	return WithHandler(HandlerFuncs{Status: hook})
}

func WithErrorHook(hook func(code uint32, path string)) Option {
	return WithHandler(HandlerFuncs{Error: hook})
}

func WithLogger(lg *log.Logger) Option {
	return func(g *Guard) {
		if lg != nil {
			g.logger = lg
		}
	}
}

func WithBackend(backend notify.Backend) Option {
	return func(g *Guard) {
		g.backend = backend
	}
}

// WithBufferSize sets the per-path scratch buffer size in bytes.
func WithBufferSize(size int) Option {
	return func(g *Guard) {
		if size < minBufferSize {
			size = minBufferSize
		}
		g.bufferSize = size
	}
}

func WithJoinWarning(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.joinWarning = d
		}
	}
}

// WithVolumes replaces the enumerator used for the wildcard path specs.
func WithVolumes(e volume.Enumerator) Option {
	return func(g *Guard) {
		if e != nil {
			g.volumes = e
		}
	}
}
