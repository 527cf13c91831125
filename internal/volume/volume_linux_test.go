package volume

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const mountsFixture = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/nvme0n1p2 / ext4 rw,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev,size=3268468k,mode=755 0 0
/dev/nvme0n1p1 /boot/efi vfat rw,relatime 0 0
/dev/sda1 /mnt/My\040Disk ext4 rw,relatime 0 0
server:/export /mnt/nfs nfs4 rw,relatime 0 0
//nas/share /mnt/share cifs rw,relatime 0 0
/dev/sr0 /media/cdrom iso9660 ro,relatime 0 0
/dev/nvme0n1p2 / ext4 rw,relatime 0 0
`

func TestParseMounts(t *testing.T) {
	mounts, err := parseMounts(strings.NewReader(mountsFixture))
	require.NoError(t, err)
	require.Len(t, mounts, 10)
	require.Equal(t, mount{device: "/dev/sda1", point: "/mnt/My Disk", fstype: "ext4"}, mounts[5])
}

func TestSelectRoots(t *testing.T) {
	mounts, err := parseMounts(strings.NewReader(mountsFixture))
	require.NoError(t, err)

	tests := []struct {
		name string
		set  Set
		want []string
	}{
		{
			name: "all volumes",
			set:  All,
			want: []string{"/", "/run/", "/boot/efi/", "/mnt/My Disk/"},
		},
		{
			name: "except system volume",
			set:  ExceptSystem,
			want: []string{"/run/", "/boot/efi/", "/mnt/My Disk/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, selectRoots(mounts, tt.set, systemVolume))
		})
	}
}

func TestUnescapeMount(t *testing.T) {
	require.Equal(t, "/mnt/a b", unescapeMount(`/mnt/a\040b`))
	require.Equal(t, `/mnt/a\b`, unescapeMount(`/mnt/a\134b`))
	require.Equal(t, `/mnt/x\`, unescapeMount(`/mnt/x\`))
	require.Equal(t, `/mnt/\9zz`, unescapeMount(`/mnt/\9zz`))
}

func TestResolve_ExceptSystemNeverIncludesRoot(t *testing.T) {
	roots, err := Resolve(ExceptSystem)
	require.NoError(t, err)
	require.NotContains(t, roots, "/")

	all, err := System{}.Resolve(All)
	require.NoError(t, err)
	require.Contains(t, all, "/")
}
