package notify

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_CREATE |
	unix.IN_DELETE |
	unix.IN_MODIFY |
	unix.IN_MOVED_FROM |
	unix.IN_MOVED_TO |
	unix.IN_DELETE_SELF

// inotifyEvent is one raw inotify_event record.
type inotifyEvent struct {
	wd     int32
	mask   uint32
	cookie uint32
	name   string
}

// parseInotify splits a read(2) result into inotify_event records. Decoding
// stops at the first record that does not fit in buf.
func parseInotify(buf []byte) (events []inotifyEvent, ok bool) {
	pos := 0
	for pos < len(buf) {
		if pos+unix.SizeofInotifyEvent > len(buf) {
			return events, false
		}
		wd := int32(binary.NativeEndian.Uint32(buf[pos:]))
		mask := binary.NativeEndian.Uint32(buf[pos+4:])
		cookie := binary.NativeEndian.Uint32(buf[pos+8:])
		nameLen := int(binary.NativeEndian.Uint32(buf[pos+12:]))

		start := pos + unix.SizeofInotifyEvent
		if nameLen < 0 || start+nameLen > len(buf) {
			return events, false
		}

		// the name is NUL padded up to an alignment boundary
		name := buf[start : start+nameLen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}

		events = append(events, inotifyEvent{
			wd:     wd,
			mask:   mask,
			cookie: cookie,
			name:   string(name),
		})
		pos = start + nameLen
	}
	return events, true
}

// inotifyNotifier watches one root with an inotify instance. The inotify fd
// is the completion signal and an eventfd is the stop signal; Next polls both.
type inotifyNotifier struct {
	fd        int
	stopFd    int
	root      string
	recursive bool
	rootWd    int32
	dirs      map[int32]string // watch descriptor -> directory relative to root

	// armed is set by the first Rearm; events queued before it are dropped.
	armed bool
	// lost holds a failure found while dropping those events.
	lost error
}

func openNative(root string, recursive bool) (Notifier, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}

	stopFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	n := &inotifyNotifier{
		fd:        fd,
		stopFd:    stopFd,
		root:      filepath.Clean(root),
		recursive: recursive,
		dirs:      make(map[int32]string),
	}

	wd, err := n.watch(n.root, "")
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	n.rootWd = wd

	if recursive {
		n.watchTree(n.root)
	}
	return n, nil
}

func (n *inotifyNotifier) watch(abs, rel string) (int32, error) {
	wd, err := unix.InotifyAddWatch(n.fd, abs, inotifyMask|unix.IN_ONLYDIR|unix.IN_DONT_FOLLOW)
	if err != nil {
		return -1, &os.PathError{Op: "inotify_add_watch", Path: abs, Err: err}
	}
	n.dirs[int32(wd)] = rel
	return int32(wd), nil
}

// watchTree registers every directory below abs. Directories that vanish or
// cannot be read are skipped.
func (n *inotifyNotifier) watchTree(abs string) {
	dirs, err := subdirs(abs)
	if err != nil {
		return
	}
	for _, dir := range dirs {
		rel, err := filepath.Rel(n.root, dir)
		if err != nil {
			continue
		}
		_, _ = n.watch(dir, rel)
	}
}

// forget drops the watches of rel and everything below it, used when a
// directory is moved away and its recorded path goes stale.
func (n *inotifyNotifier) forget(rel string) {
	prefix := rel + string(filepath.Separator)
	for wd, dir := range n.dirs {
		if wd == n.rootWd {
			continue
		}
		if dir == rel || strings.HasPrefix(dir, prefix) {
			_, _ = unix.InotifyRmWatch(n.fd, uint32(wd))
			delete(n.dirs, wd)
		}
	}
}

func (n *inotifyNotifier) Next(buf []byte) ([]Record, error) {
	if n.lost != nil {
		return nil, n.lost
	}
	for {
		fds := []unix.PollFd{
			{Fd: int32(n.fd), Events: unix.POLLIN},
			{Fd: int32(n.stopFd), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("poll", err)
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			return nil, ErrStopped
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return nil, os.NewSyscallError("poll", unix.EBADF)
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		nr, err := unix.Read(n.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("read", err)
		}
		return n.translate(buf[:nr])
	}
}

func (n *inotifyNotifier) translate(buf []byte) ([]Record, error) {
	events, _ := parseInotify(buf)

	var (
		records  []Record
		rootGone bool
	)
	for _, ev := range events {
		if ev.mask&unix.IN_Q_OVERFLOW != 0 {
			continue
		}
		if ev.mask&unix.IN_IGNORED != 0 {
			if ev.wd == n.rootWd {
				rootGone = true
			}
			delete(n.dirs, ev.wd)
			continue
		}

		dir, known := n.dirs[ev.wd]
		if !known || ev.name == "" {
			continue
		}
		rel := filepath.Join(dir, ev.name)
		isDir := ev.mask&unix.IN_ISDIR != 0

		var action model.Action
		switch {
		case ev.mask&unix.IN_CREATE != 0:
			action = model.Added
			if isDir && n.recursive {
				n.watchNew(rel)
			}
		case ev.mask&unix.IN_DELETE != 0:
			action = model.Removed
		case ev.mask&unix.IN_MODIFY != 0:
			action = model.Modified
		case ev.mask&unix.IN_MOVED_FROM != 0:
			action = model.RenamedFrom
			if isDir && n.recursive {
				n.forget(rel)
			}
		case ev.mask&unix.IN_MOVED_TO != 0:
			action = model.RenamedTo
			if isDir && n.recursive {
				n.watchNew(rel)
			}
		default:
			continue
		}
		records = append(records, Record{Action: action, Name: rel})
	}

	if rootGone {
		return records, &os.PathError{Op: "watch", Path: n.root, Err: unix.ENOENT}
	}
	return records, nil
}

func (n *inotifyNotifier) watchNew(rel string) {
	abs := filepath.Join(n.root, rel)
	if _, err := n.watch(abs, rel); err != nil {
		return
	}
	n.watchTree(abs)
}

func (n *inotifyNotifier) Interrupt() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(n.stopFd, one[:]); err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (n *inotifyNotifier) Rearm() error {
	var drain [8]byte
	if _, err := unix.Read(n.stopFd, drain[:]); err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("read", err)
	}
	if !n.armed {
		n.armed = true
		return n.discardPending()
	}
	return nil
}

// discardPending drops the events the kernel queued between open and the
// first run. Directory bookkeeping still applies, and a root removed in the
// meantime is reported by the next call to Next.
func (n *inotifyNotifier) discardPending() error {
	buf := make([]byte, DefaultBufferSize)
	for {
		nr, err := unix.Read(n.fd, buf)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return nil
			case unix.EINTR:
				continue
			}
			return os.NewSyscallError("read", err)
		}
		if _, err := n.translate(buf[:nr]); err != nil {
			n.lost = err
			return nil
		}
	}
}

func (n *inotifyNotifier) Close() error {
	var errs []error
	if n.stopFd >= 0 {
		if err := unix.Close(n.stopFd); err != nil {
			errs = append(errs, err)
		}
		n.stopFd = -1
	}
	if n.fd >= 0 {
		if err := unix.Close(n.fd); err != nil {
			errs = append(errs, err)
		}
		n.fd = -1
	}
	n.dirs = nil
	if len(errs) > 0 {
		return os.NewSyscallError("close", errs[0])
	}
	return nil
}
