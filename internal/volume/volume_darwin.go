package volume

import (
	"os"
	"path/filepath"
	"syscall"
)

const (
	systemVolume = "/"
	volumesDir   = "/Volumes"
)

var skipTypes = map[string]struct{}{
	"smbfs": {}, "nfs": {}, "afpfs": {}, "webdav": {}, "cifs": {},
	"devfs": {}, "autofs": {}, "mtmfs": {}, "nullfs": {},
	"cd9660": {}, "udf": {},
}

func resolve(set Set) ([]string, error) {
	var roots []string
	if set != ExceptSystem {
		roots = append(roots, systemVolume)
	}

	entries, err := os.ReadDir(volumesDir)
	if err != nil {
		return roots, nil
	}

	for _, entry := range entries {
		// the boot volume shows up here as a symlink to /
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(volumesDir, entry.Name())

		var stat syscall.Statfs_t
		if err := syscall.Statfs(path, &stat); err != nil {
			continue
		}
		if _, skip := skipTypes[int8ArrayToString(stat.Fstypename[:])]; skip {
			continue
		}
		roots = append(roots, withSeparator(path))
	}
	return roots, nil
}

func int8ArrayToString(arr []int8) string {
	b := make([]byte, 0, len(arr))
	for _, v := range arr {
		if v == 0 {
			break
		}
		b = append(b, byte(v))
	}
	return string(b)
}
