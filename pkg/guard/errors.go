package guard

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrPathNotExist is returned by AddPath for a literal path that does not exist.
	ErrPathNotExist = errors.New("path does not exist")
	// ErrPathNotWatched is returned by queries about a root that is not registered.
	ErrPathNotWatched = errors.New("path is not watched")
	// ErrCancelTimeout reports a worker that outlived the join warning
	// threshold. The worker has still been joined when this is returned.
	ErrCancelTimeout = errors.New("worker stop exceeded the join threshold")
)

// AcquireError is a failure to create the OS resources of a watched path.
type AcquireError struct {
	Path string
	Code uint32
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire watch on %s failed, error code %d: %v", e.Path, e.Code, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// RuntimeError is a failed notification request that ended one worker.
type RuntimeError struct {
	Path string
	Code uint32
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("watch on %s failed, error code %d: %v", e.Path, e.Code, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// errno extracts the OS error code carried by err, or 0.
func errno(err error) uint32 {
	var en syscall.Errno
	if errors.As(err, &en) {
		return uint32(en)
	}
	return 0
}
