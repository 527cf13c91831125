package guard

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
)

// pollInterval paces the stop request while waiting for a worker.
const pollInterval = 10 * time.Millisecond

type opener func(root string, recursive bool, backend notify.Backend) (notify.Notifier, error)

// pathState owns the notification resources of one watched root. It is
// never copied; the registry keeps pointers.
type pathState struct {
	path      string
	recursive bool
	n         notify.Notifier
	buf       []byte

	running  atomic.Bool
	quit     atomic.Bool
	workerID atomic.Uint64
	// done is closed by the worker on exit. Only the registry goroutine
	// reads or replaces it.
	done chan struct{}

	mu       sync.Mutex
	code     uint32
	message  string
	released bool
}

func acquire(open opener, path string, recursive bool, backend notify.Backend, bufferSize int) (*pathState, error) {
	n, err := open(path, recursive, backend)
	if err != nil {
		return nil, &AcquireError{Path: path, Code: errno(err), Err: err}
	}
	return &pathState{
		path:      path,
		recursive: recursive,
		n:         n,
		buf:       make([]byte, bufferSize),
	}, nil
}

func (s *pathState) setError(code uint32, message string) {
	s.mu.Lock()
	s.code, s.message = code, message
	s.mu.Unlock()
}

func (s *pathState) lastError() (uint32, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.message
}

// wait raises the stop signal until the notifier acknowledges it and then
// joins the worker. It never returns while the worker is alive. If joining
// took longer than threshold a warning is logged and ErrCancelTimeout is
// returned.
func (s *pathState) wait(threshold time.Duration, lg *log.Logger) error {
	done := s.done
	if done == nil {
		return nil
	}
	s.quit.Store(true)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	start := time.Now()
	acked, warned := false, false
	for {
		if !acked {
			if err := s.n.Interrupt(); err != nil {
				lg.Printf("guard warning :: stop request for %s not acknowledged, %v", s.path, err)
			} else {
				acked = true
			}
		}

		select {
		case <-done:
			s.done = nil
			if warned {
				return fmt.Errorf("%w: worker %d on %s took %v", ErrCancelTimeout, s.workerID.Load(), s.path, time.Since(start))
			}
			return nil
		case <-ticker.C:
		}

		if !warned && time.Since(start) > threshold {
			warned = true
			lg.Printf("guard warning :: worker %d on %s still running after %v", s.workerID.Load(), s.path, threshold)
		}
	}
}

// release closes the notifier. It is idempotent and joins a live worker
// first.
func (s *pathState) release(threshold time.Duration, lg *log.Logger) error {
	var waitErr error
	if s.done != nil {
		waitErr = s.wait(threshold, lg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return waitErr
	}
	s.released = true
	s.buf = nil
	if err := s.n.Close(); err != nil {
		lg.Printf("guard warning :: release %s, %v", s.path, err)
	}
	return waitErr
}
