package notify

import (
	"encoding/binary"
	"testing"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func buildInotify(wd int32, mask uint32, name string) []byte {
	nameLen := 0
	if name != "" {
		nameLen = len(name) + 1
		if pad := nameLen % 16; pad != 0 {
			nameLen += 16 - pad
		}
	}
	rec := make([]byte, unix.SizeofInotifyEvent+nameLen)
	binary.NativeEndian.PutUint32(rec[0:], uint32(wd))
	binary.NativeEndian.PutUint32(rec[4:], mask)
	binary.NativeEndian.PutUint32(rec[12:], uint32(nameLen))
	copy(rec[unix.SizeofInotifyEvent:], name)
	return rec
}

func TestParseInotify(t *testing.T) {
	var buf []byte
	buf = append(buf, buildInotify(1, unix.IN_CREATE, "a.txt")...)
	buf = append(buf, buildInotify(1, unix.IN_MODIFY, "a.txt")...)
	buf = append(buf, buildInotify(2, unix.IN_DELETE_SELF, "")...)

	events, ok := parseInotify(buf)
	require.True(t, ok)
	require.Len(t, events, 3)
	require.Equal(t, "a.txt", events[0].name)
	require.Equal(t, uint32(unix.IN_MODIFY), events[1].mask)
	require.Equal(t, int32(2), events[2].wd)
	require.Empty(t, events[2].name)

	events, ok = parseInotify(buf[:len(buf)-4])
	require.False(t, ok)
	require.Len(t, events, 2)
}

func TestInotify_Translate(t *testing.T) {
	n := &inotifyNotifier{
		fd:     -1,
		stopFd: -1,
		root:   "/data",
		rootWd: 1,
		dirs:   map[int32]string{1: "", 2: "logs"},
	}

	var buf []byte
	buf = append(buf, buildInotify(1, unix.IN_CREATE, "x.log")...)
	buf = append(buf, buildInotify(2, unix.IN_MODIFY, "y.log")...)
	buf = append(buf, buildInotify(2, unix.IN_MOVED_FROM, "old.log")...)
	buf = append(buf, buildInotify(2, unix.IN_MOVED_TO, "new.log")...)
	buf = append(buf, buildInotify(-1, unix.IN_Q_OVERFLOW, "")...)
	buf = append(buf, buildInotify(9, unix.IN_CREATE, "unknown.log")...)
	buf = append(buf, buildInotify(1, unix.IN_DELETE, "x.log")...)

	records, err := n.translate(buf)
	require.NoError(t, err)
	require.Equal(t, []Record{
		{Action: model.Added, Name: "x.log"},
		{Action: model.Modified, Name: "logs/y.log"},
		{Action: model.RenamedFrom, Name: "logs/old.log"},
		{Action: model.RenamedTo, Name: "logs/new.log"},
		{Action: model.Removed, Name: "x.log"},
	}, records)

	records, err = n.translate(buildInotify(1, unix.IN_IGNORED, ""))
	require.Error(t, err)
	require.Empty(t, records)
}
