package notify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/fsnotify/fsnotify"
)

// fsnotifyNotifier is the portable backend. fsnotify already runs its own
// reader goroutine; Next waits on its channels or on the stop signal.
type fsnotifyNotifier struct {
	// fw records changes. It is created by the first Rearm, so nothing
	// that happened before the first run is reported.
	fw        *fsnotify.Watcher
	root      string
	recursive bool
	stop      chan struct{}
}

func openFsnotify(root string, recursive bool) (Notifier, error) {
	n := &fsnotifyNotifier{
		root:      filepath.Clean(root),
		recursive: recursive,
		stop:      make(chan struct{}, 1),
	}

	// acquisition errors surface here; this trial watch is closed at once
	fw, err := n.watchRoot()
	if err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *fsnotifyNotifier) watchRoot() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(n.root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return fw, nil
}

func (n *fsnotifyNotifier) watchTree(abs string) {
	dirs, err := subdirs(abs)
	if err != nil {
		return
	}
	for _, dir := range dirs {
		_ = n.fw.Add(dir)
	}
}

func (n *fsnotifyNotifier) Next(_ []byte) ([]Record, error) {
	for {
		select {
		case <-n.stop:
			return nil, ErrStopped
		case err, ok := <-n.fw.Errors:
			if !ok {
				return nil, ErrStopped
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				return nil, nil
			}
			return nil, err
		case e, ok := <-n.fw.Events:
			if !ok {
				return nil, ErrStopped
			}
			records, err := n.translate(e)
			if err != nil || len(records) > 0 {
				return records, err
			}
		}
	}
}

func (n *fsnotifyNotifier) translate(e fsnotify.Event) ([]Record, error) {
	name := filepath.Clean(e.Name)
	if name == n.root {
		if e.Has(fsnotify.Remove) {
			return nil, &os.PathError{Op: "watch", Path: n.root, Err: syscall.ENOENT}
		}
		return nil, nil
	}

	rel, err := filepath.Rel(n.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, nil
	}

	var action model.Action
	switch {
	case e.Has(fsnotify.Create):
		action = model.Added
		if n.recursive {
			if fi, err := os.Lstat(name); err == nil && fi.IsDir() {
				_ = n.fw.Add(name)
				n.watchTree(name)
			}
		}
	case e.Has(fsnotify.Remove):
		action = model.Removed
	case e.Has(fsnotify.Write):
		action = model.Modified
	case e.Has(fsnotify.Rename):
		action = model.RenamedFrom
	default:
		return nil, nil
	}
	return []Record{{Action: action, Name: rel}}, nil
}

func (n *fsnotifyNotifier) Interrupt() error {
	select {
	case n.stop <- struct{}{}:
	default:
	}
	return nil
}

func (n *fsnotifyNotifier) Rearm() error {
	select {
	case <-n.stop:
	default:
	}
	if n.fw != nil {
		return nil
	}

	fw, err := n.watchRoot()
	if err != nil {
		return err
	}
	n.fw = fw
	if n.recursive {
		n.watchTree(n.root)
	}
	return nil
}

func (n *fsnotifyNotifier) Close() error {
	if n.fw == nil {
		return nil
	}
	err := n.fw.Close()
	n.fw = nil
	return err
}
