package volume

import (
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

func resolve(set Set) ([]string, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, os.NewSyscallError("GetLogicalDrives", err)
	}

	var roots []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + `:\`
		p, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(p) {
		case windows.DRIVE_UNKNOWN, windows.DRIVE_NO_ROOT_DIR, windows.DRIVE_REMOTE, windows.DRIVE_CDROM:
			continue
		}
		roots = append(roots, root)
	}

	if set == ExceptSystem {
		dir, err := windows.GetWindowsDirectory()
		if err != nil {
			return nil, os.NewSyscallError("GetWindowsDirectory", err)
		}
		if len(dir) >= 3 {
			roots = without(roots, strings.ToUpper(dir[:3]))
		}
	}
	return roots, nil
}
