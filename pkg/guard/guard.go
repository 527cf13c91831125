package guard

/*
	guard --> registry of watched roots.

	Every root gets its own pathState: the OS notification resources plus a
	worker goroutine that runs the request / wait / deliver cycle. The registry
	methods (AddPath, Start, Stop, ...) are meant to be called from one
	goroutine. Workers only read the shared flags below and report through the
	dispatcher, which serializes every callback.

	Lifecycle of one root:

	IDLE --spawn--> RUNNING --stop signal / failure--> IDLE
*/

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
	"github.com/ManouchehrRasoulli/fsguard/internal/volume"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

const (
	// AllVolumes watches every notifiable mounted volume.
	AllVolumes = "*"
	// AllVolumesExceptSystem skips the volume of the OS installation.
	AllVolumesExceptSystem = "&"
)

// RootResult is the per-root outcome of a wildcard AddPath.
type RootResult struct {
	Path string
	Err  error
}

// Guard watches a set of directory roots and reports their changes to the
// registered handlers.
type Guard struct {
	paths    []*pathState
	suffixes SuffixSet
	filter   atomic.Pointer[suffixFilter]

	started bool
	paused  atomic.Bool
	workers atomic.Uint64

	errMu   sync.Mutex
	lastErr string

	dispatch    *dispatcher
	logger      *log.Logger
	backend     notify.Backend
	bufferSize  int
	joinWarning time.Duration
	volumes     volume.Enumerator
	open        opener
}

// New returns an empty, stopped guard configured by options.
func New(options ...Option) *Guard {
	g := &Guard{
		dispatch:    &dispatcher{},
		logger:      log.New(io.Discard, "", 0),
		backend:     notify.Native,
		bufferSize:  notify.DefaultBufferSize,
		joinWarning: DefaultJoinWarning,
		volumes:     volume.System{},
		open:        notify.Open,
	}
	for _, opt := range options {
		opt(g)
	}
	g.publishFilter()
	return g
}

// fail records err as the last error and returns it.
func (g *Guard) fail(err error) error {
	if err == nil {
		return nil
	}
	g.errMu.Lock()
	g.lastErr = err.Error()
	g.errMu.Unlock()
	return err
}

// LastError returns the message of the most recent failure, or "".
func (g *Guard) LastError() string {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	return g.lastErr
}

func (g *Guard) find(normalized string) int {
	for i, s := range g.paths {
		if s.path == normalized {
			return i
		}
	}
	return -1
}

// AddPath registers a root. target is a directory path, AllVolumes or
// AllVolumesExceptSystem. Adding a root that is already watched is a no-op.
// A wildcard adds every volume it can and joins the failures of the rest.
// New roots stay idle until Start.
func (g *Guard) AddPath(target string, recursive bool) error {
	switch target {
	case AllVolumes:
		_, err := g.AddVolumes(volume.All, recursive)
		return err
	case AllVolumesExceptSystem:
		_, err := g.AddVolumes(volume.ExceptSystem, recursive)
		return err
	}

	path, err := normalizePath(target)
	if err != nil {
		return g.fail(fmt.Errorf("add path %q: %w", target, err))
	}
	if g.find(path) >= 0 {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return g.fail(fmt.Errorf("%w: %s", ErrPathNotExist, path))
	}
	return g.fail(g.acquire(path, recursive))
}

func (g *Guard) acquire(path string, recursive bool) error {
	s, err := acquire(g.open, path, recursive, g.backend, g.bufferSize)
	if err != nil {
		g.logger.Printf("guard error :: %v", err)
		return err
	}
	g.paths = append(g.paths, s)
	g.logger.Printf("guard :: added %s (recursive=%t)", path, recursive)
	return nil
}

// AddVolumes resolves set and adds each volume root. One root failing does
// not stop the others; every outcome is reported in the results.
func (g *Guard) AddVolumes(set volume.Set, recursive bool) ([]RootResult, error) {
	roots, err := g.volumes.Resolve(set)
	if err != nil {
		return nil, g.fail(fmt.Errorf("resolve %s volumes: %w", set, err))
	}

	results := make([]RootResult, 0, len(roots))
	var errs []error
	for _, root := range roots {
		res := RootResult{Path: root}
		path, err := normalizePath(root)
		if err == nil {
			res.Path = path
			if g.find(path) < 0 {
				err = g.acquire(path, recursive)
			}
		}
		if err != nil {
			res.Err = g.fail(err)
			errs = append(errs, err)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// RemovePath stops the worker of path, if any, and releases its resources.
// Removing an unknown path is a no-op.
func (g *Guard) RemovePath(path string) {
	normalized, err := normalizePath(path)
	if err != nil {
		return
	}
	i := g.find(normalized)
	if i < 0 {
		return
	}
	s := g.paths[i]
	g.paths = append(g.paths[:i], g.paths[i+1:]...)
	g.fail(s.release(g.joinWarning, g.logger))
	g.logger.Printf("guard :: removed %s", normalized)
}

// ClearPaths stops and releases every root.
func (g *Guard) ClearPaths() {
	for _, s := range g.paths {
		g.fail(s.release(g.joinWarning, g.logger))
	}
	g.paths = nil
}

// GetPaths returns the normalized roots and their recursive flag.
func (g *Guard) GetPaths() map[string]bool {
	paths := make(map[string]bool, len(g.paths))
	for _, s := range g.paths {
		paths[s.path] = s.recursive
	}
	return paths
}

func (g *Guard) ExistPath(path string) bool {
	normalized, err := normalizePath(path)
	if err != nil {
		return false
	}
	return g.find(normalized) >= 0
}

// PathStatus is a snapshot of one watched root.
type PathStatus struct {
	Path      string
	Recursive bool
	Running   bool
	WorkerID  uint64
	// Code and Message describe the last runtime failure of the root.
	Code    uint32
	Message string
}

// Status returns the state of a registered root.
func (g *Guard) Status(path string) (PathStatus, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return PathStatus{}, err
	}
	i := g.find(normalized)
	if i < 0 {
		return PathStatus{}, fmt.Errorf("%w: %s", ErrPathNotWatched, normalized)
	}
	s := g.paths[i]
	code, message := s.lastError()
	return PathStatus{
		Path:      s.path,
		Recursive: s.recursive,
		Running:   s.running.Load(),
		WorkerID:  s.workerID.Load(),
		Code:      code,
		Message:   message,
	}, nil
}

// Start unpauses delivery and spawns a worker for every idle root. Running
// roots report STARTED again without a new worker.
func (g *Guard) Start() {
	g.suffixes.collapse()
	g.publishFilter()

	g.started = true
	g.paused.Store(false)
	for _, s := range g.paths {
		if s.running.Load() {
			g.dispatch.status(model.Started, s.workerID.Load(), s.path)
			continue
		}
		if s.done != nil {
			// a worker that ended on its own still has to be joined
			g.fail(s.wait(g.joinWarning, g.logger))
		}
		g.spawn(s)
	}
}

// Pause suppresses change delivery. Workers keep running and events that
// occur while paused are dropped.
func (g *Guard) Pause() {
	if g.paused.Swap(true) {
		return
	}
	for _, s := range g.paths {
		if s.running.Load() {
			g.dispatch.status(model.Paused, s.workerID.Load(), s.path)
		}
	}
}

// Stop signals every worker and joins them. No change is delivered after
// Stop returns.
func (g *Guard) Stop() {
	g.started = false
	g.paused.Store(false)
	for _, s := range g.paths {
		g.fail(s.wait(g.joinWarning, g.logger))
	}
}

// Restart stops the guard, re-acquires every root with its recursive flag
// and starts again. It aborts on the first root that cannot be re-added.
func (g *Guard) Restart() error {
	g.Stop()

	type root struct {
		path      string
		recursive bool
	}
	roots := make([]root, 0, len(g.paths))
	for _, s := range g.paths {
		roots = append(roots, root{path: s.path, recursive: s.recursive})
	}
	g.ClearPaths()

	for _, r := range roots {
		if err := g.AddPath(r.path, r.recursive); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
	}
	g.Start()
	return nil
}

// IsStart reports whether the guard is started and not paused.
func (g *Guard) IsStart() bool {
	return g.started && !g.paused.Load()
}

// Close stops every worker and releases every root.
func (g *Guard) Close() {
	g.Stop()
	g.ClearPaths()
}

func (g *Guard) publishFilter() {
	g.filter.Store(newSuffixFilter(g.suffixes.List()))
}

func (g *Guard) AddSuffix(suffix string) {
	g.suffixes.Add(suffix)
	g.publishFilter()
}

func (g *Guard) AddSuffixes(suffixes []string) {
	g.suffixes.AddAll(suffixes)
	g.publishFilter()
}

func (g *Guard) RemoveSuffix(suffix string) {
	g.suffixes.Remove(suffix)
	g.publishFilter()
}

func (g *Guard) RemoveSuffixes(suffixes []string) {
	g.suffixes.RemoveAll(suffixes)
	g.publishFilter()
}

func (g *Guard) ClearSuffixes() {
	g.suffixes.Clear()
	g.publishFilter()
}

// Suffixes returns the allow-list in insertion order.
func (g *Guard) Suffixes() []string {
	return g.suffixes.List()
}
