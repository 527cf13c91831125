//go:build !linux && !windows && !(darwin && cgo)

package notify

// No native mechanism is wired for this platform; fsnotify covers it
// (kqueue on the BSDs and on darwin without cgo).
func openNative(root string, recursive bool) (Notifier, error) {
	return openFsnotify(root, recursive)
}
