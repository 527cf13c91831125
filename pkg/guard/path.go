package guard

import (
	"os"
	"path/filepath"
	"strings"
)

// normalizePath makes p absolute, converts slashes to the OS separator and
// appends a trailing separator, so equal directories compare equal.
func normalizePath(p string) (string, error) {
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(abs, string(os.PathSeparator)) {
		abs += string(os.PathSeparator)
	}
	return abs, nil
}
