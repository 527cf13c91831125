package volume

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	mountsFile   = "/proc/self/mounts"
	systemVolume = "/"
)

// skipTypes lists filesystems that cannot be meaningfully watched: kernel
// pseudo filesystems without a backing root directory, remote filesystems
// (inotify does not see changes made by other hosts) and optical media.
var skipTypes = map[string]struct{}{
	// pseudo
	"proc": {}, "sysfs": {}, "devpts": {}, "devtmpfs": {}, "cgroup": {}, "cgroup2": {},
	"securityfs": {}, "debugfs": {}, "tracefs": {}, "pstore": {}, "bpf": {}, "mqueue": {},
	"hugetlbfs": {}, "configfs": {}, "fusectl": {}, "binfmt_misc": {}, "autofs": {},
	"rpc_pipefs": {}, "nsfs": {}, "efivarfs": {}, "selinuxfs": {}, "ramfs": {},
	// remote
	"nfs": {}, "nfs4": {}, "cifs": {}, "smb3": {}, "smbfs": {}, "ncpfs": {}, "9p": {},
	"afs": {}, "ceph": {}, "glusterfs": {}, "fuse.sshfs": {}, "fuse.glusterfs": {},
	"lustre": {}, "davfs": {}, "fuse.rclone": {},
	// optical
	"iso9660": {}, "udf": {},
}

type mount struct {
	device string
	point  string
	fstype string
}

func resolve(set Set) ([]string, error) {
	f, err := os.Open(mountsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mounts, err := parseMounts(f)
	if err != nil {
		return nil, err
	}
	return selectRoots(mounts, set, systemVolume), nil
}

// parseMounts reads the fstab-like format of /proc/self/mounts.
func parseMounts(r io.Reader) ([]mount, error) {
	var mounts []mount
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, mount{
			device: unescapeMount(fields[0]),
			point:  unescapeMount(fields[1]),
			fstype: fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// unescapeMount decodes the \ooo octal escapes the kernel writes for blanks
// and backslashes in mount paths.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func selectRoots(mounts []mount, set Set, system string) []string {
	seen := make(map[string]struct{}, len(mounts))
	var roots []string
	for _, m := range mounts {
		if _, skip := skipTypes[m.fstype]; skip {
			continue
		}
		if !strings.HasPrefix(m.point, "/") {
			continue
		}
		root := withSeparator(m.point)
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	if set == ExceptSystem {
		roots = without(roots, withSeparator(system))
	}
	return roots
}
