package notify

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// subdirs lists every directory below root (root excluded), parents before
// children. Unreadable entries are skipped; symlinks are not followed.
func subdirs(root string) ([]string, error) {
	var (
		mu   sync.Mutex
		dirs []string
	)

	conf := &fastwalk.Config{
		Follow: false,
	}

	clean := filepath.Clean(root)
	err := fastwalk.Walk(conf, clean, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == clean || !d.IsDir() {
			return nil
		}
		mu.Lock()
		dirs = append(dirs, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// fastwalk visits in parallel; shorter paths first keeps parents ahead.
	sort.Slice(dirs, func(i, j int) bool {
		if len(dirs[i]) != len(dirs[j]) {
			return len(dirs[i]) < len(dirs[j])
		}
		return dirs[i] < dirs[j]
	})
	return dirs, nil
}
