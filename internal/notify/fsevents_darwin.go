//go:build darwin && cgo

package notify

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/fsnotify/fsevents"
)

const fseventsLatency = 50 * time.Millisecond

// fseventsNotifier runs one FSEvents stream per root. FSEvents always
// reports the whole subtree, so non-recursive roots drop nested names.
type fseventsNotifier struct {
	stream    *fsevents.EventStream
	root      string
	recursive bool
	started   bool
	stop      chan struct{}
}

func openNative(root string, recursive bool) (Notifier, error) {
	clean := filepath.Clean(root)
	dev, err := fsevents.DeviceForPath(clean)
	if err != nil {
		return nil, &os.PathError{Op: "DeviceForPath", Path: clean, Err: err}
	}

	return &fseventsNotifier{
		stream: &fsevents.EventStream{
			Paths:   []string{clean},
			Latency: fseventsLatency,
			Device:  dev,
			Flags:   fsevents.FileEvents | fsevents.WatchRoot,
			Events:  make(chan []fsevents.Event, 8),
		},
		root:      clean,
		recursive: recursive,
		stop:      make(chan struct{}, 1),
	}, nil
}

func (n *fseventsNotifier) Next(_ []byte) ([]Record, error) {
	for {
		select {
		case <-n.stop:
			return nil, ErrStopped
		case batch, ok := <-n.stream.Events:
			if !ok {
				return nil, ErrStopped
			}
			records, err := n.translate(batch)
			if err != nil || len(records) > 0 {
				return records, err
			}
		}
	}
}

func (n *fseventsNotifier) translate(batch []fsevents.Event) ([]Record, error) {
	var records []Record
	for _, e := range batch {
		path := e.Path
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		if e.Flags&fsevents.RootChanged != 0 {
			return records, &os.PathError{Op: "watch", Path: n.root, Err: syscall.ENOENT}
		}

		rel, err := filepath.Rel(n.root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !n.recursive && strings.ContainsRune(rel, filepath.Separator) {
			continue
		}

		// one FSEvents record may carry several coalesced flags
		if e.Flags&fsevents.ItemCreated != 0 {
			records = append(records, Record{Action: model.Added, Name: rel})
		}
		if e.Flags&fsevents.ItemModified != 0 {
			records = append(records, Record{Action: model.Modified, Name: rel})
		}
		if e.Flags&fsevents.ItemRenamed != 0 {
			action := model.RenamedFrom
			if _, err := os.Lstat(path); err == nil {
				action = model.RenamedTo
			}
			records = append(records, Record{Action: action, Name: rel})
		}
		if e.Flags&fsevents.ItemRemoved != 0 {
			records = append(records, Record{Action: model.Removed, Name: rel})
		}
	}
	return records, nil
}

func (n *fseventsNotifier) Interrupt() error {
	select {
	case n.stop <- struct{}{}:
	default:
	}
	return nil
}

func (n *fseventsNotifier) Rearm() error {
	select {
	case <-n.stop:
	default:
	}
	if !n.started {
		if err := n.stream.Start(); err != nil {
			return &os.PathError{Op: "FSEventStreamStart", Path: n.root, Err: err}
		}
		n.started = true
	}
	return nil
}

func (n *fseventsNotifier) Close() error {
	if n.started {
		n.stream.Stop()
		n.started = false
	}
	return nil
}
