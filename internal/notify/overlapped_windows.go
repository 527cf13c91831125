package notify

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

const notifyFilter = windows.FILE_NOTIFY_CHANGE_FILE_NAME |
	windows.FILE_NOTIFY_CHANGE_DIR_NAME |
	windows.FILE_NOTIFY_CHANGE_LAST_WRITE

const (
	waitCompletion = 0 // WAIT_OBJECT_0
	waitStop       = 1 // WAIT_OBJECT_0 + 1
)

// overlappedNotifier issues ReadDirectoryChangesW with an OVERLAPPED whose
// event is the completion signal. The stop signal is a second manual-reset
// event; Next waits on both.
type overlappedNotifier struct {
	root       string
	recursive  bool
	handle     windows.Handle
	completion windows.Handle
	stop       windows.Handle
	ov         windows.Overlapped
}

func openNative(root string, recursive bool) (Notifier, error) {
	path, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		path,
		windows.FILE_LIST_DIRECTORY|windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, &os.PathError{Op: "CreateFile", Path: root, Err: err}
	}

	completion, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		_ = windows.CloseHandle(handle)
		return nil, os.NewSyscallError("CreateEvent", err)
	}

	stop, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		_ = windows.CloseHandle(completion)
		_ = windows.CloseHandle(handle)
		return nil, os.NewSyscallError("CreateEvent", err)
	}

	return &overlappedNotifier{
		root:       filepath.Clean(root),
		recursive:  recursive,
		handle:     handle,
		completion: completion,
		stop:       stop,
	}, nil
}

func (n *overlappedNotifier) Next(buf []byte) ([]Record, error) {
	if err := windows.ResetEvent(n.completion); err != nil {
		return nil, os.NewSyscallError("ResetEvent", err)
	}
	n.ov = windows.Overlapped{HEvent: n.completion}

	err := windows.ReadDirectoryChanges(n.handle, &buf[0], uint32(len(buf)), n.recursive, notifyFilter, nil, &n.ov, 0)
	if err != nil {
		return nil, os.NewSyscallError("ReadDirectoryChanges", err)
	}

	event, err := windows.WaitForMultipleObjects([]windows.Handle{n.completion, n.stop}, false, windows.INFINITE)
	if err != nil {
		_ = windows.CancelIoEx(n.handle, &n.ov)
		var done uint32
		_ = windows.GetOverlappedResult(n.handle, &n.ov, &done, true)
		return nil, os.NewSyscallError("WaitForMultipleObjects", err)
	}

	stopped := event == waitStop
	if stopped {
		// the kernel owns buf until the cancelled request completes
		_ = windows.CancelIoEx(n.handle, &n.ov)
	}

	var got uint32
	err = windows.GetOverlappedResult(n.handle, &n.ov, &got, true)
	if err != nil {
		if errors.Is(err, windows.ERROR_OPERATION_ABORTED) {
			return nil, ErrStopped
		}
		return nil, os.NewSyscallError("GetOverlappedResult", err)
	}
	if stopped {
		return nil, ErrStopped
	}
	if got == 0 {
		// the system buffer overflowed; the changes are lost
		return nil, nil
	}

	records, _ := DecodeFileNotify(buf[:got])
	return records, nil
}

func (n *overlappedNotifier) Interrupt() error {
	if err := windows.SetEvent(n.stop); err != nil {
		return os.NewSyscallError("SetEvent", err)
	}
	if err := windows.CancelIoEx(n.handle, nil); err != nil && !errors.Is(err, windows.ERROR_NOT_FOUND) {
		return os.NewSyscallError("CancelIoEx", err)
	}
	return nil
}

func (n *overlappedNotifier) Rearm() error {
	if err := windows.ResetEvent(n.stop); err != nil {
		return os.NewSyscallError("ResetEvent", err)
	}
	return nil
}

func (n *overlappedNotifier) Close() error {
	var errs []error
	for _, h := range []*windows.Handle{&n.stop, &n.completion, &n.handle} {
		if *h == 0 || *h == windows.InvalidHandle {
			continue
		}
		if err := windows.CloseHandle(*h); err != nil {
			errs = append(errs, err)
		}
		*h = 0
	}
	return errors.Join(errs...)
}
