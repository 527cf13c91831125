package notify

/*
	notify --> per-root OS change notification.

	A Notifier owns the OS resources for exactly one watched root: the directory
	handle (or inotify instance), the completion signal and the stop signal.
	The caller owns the scratch buffer and drives the request cycle:

	1 - Rearm clears a stop signal left over from a previous run.
	2 - Next issues one asynchronous request and blocks until it completes or
	    the stop signal is raised.
	3 - Interrupt (from any goroutine) raises the stop signal and cancels the
	    pending request.
	4 - Close releases everything.
*/

import (
	"errors"
	"fmt"
	"os"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
)

// DefaultBufferSize matches the 64 KiB limit ReadDirectoryChangesW accepts
// for network shares.
const DefaultBufferSize = 64 * 1024

var (
	// ErrStopped is returned by Next when the stop signal ended the cycle.
	ErrStopped = errors.New("notification request cancelled")
	// ErrNotDirectory is returned by Open when the root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown notification backend")
)

// Backend selects the notification mechanism.
type Backend string

const (
	// Native is the platform mechanism: inotify, ReadDirectoryChangesW or FSEvents.
	Native Backend = "native"
	// Fsnotify uses github.com/fsnotify/fsnotify on every platform.
	Fsnotify Backend = "fsnotify"
)

// ParseBackend accepts "", "native" and "fsnotify".
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", Native:
		return Native, nil
	case Fsnotify:
		return Fsnotify, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Record is one decoded notification: an action and a name relative to the
// watched root, using the OS path separator.
type Record struct {
	Action model.Action
	Name   string
}

// Notifier is the OS resource bundle of one watched root.
type Notifier interface {
	// Next issues one change-notification request against buf and blocks
	// until it completes or the stop signal is raised. Records keep the
	// order the OS filled the buffer in. A raised stop signal returns
	// ErrStopped; any other error is a runtime failure of this root.
	Next(buf []byte) ([]Record, error)
	// Interrupt raises the stop signal and cancels the pending request.
	// A nil return means the cancellation was acknowledged.
	Interrupt() error
	// Rearm clears the stop signal before a new run.
	Rearm() error
	// Close releases every OS resource. It must not race with Next.
	Close() error
}

// Open acquires the notification resources for root. root must be an
// existing directory; recursive extends the watch to the whole subtree.
func Open(root string, recursive bool, backend Backend) (Notifier, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &os.PathError{Op: "open", Path: root, Err: ErrNotDirectory}
	}

	switch backend {
	case "", Native:
		return openNative(root, recursive)
	case Fsnotify:
		return openFsnotify(root, recursive)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, string(backend))
}
