package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestCodec_Stream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Send(Join, JoinPayload{Username: "user", Password: "secret"}))
	require.NoError(t, w.Send(ChangeNotify, ChangePayload{Action: model.RenamedTo, Path: "/data/x.log", Size: 3}))
	require.NoError(t, w.Send(StatusNotify, StatusPayload{Status: model.Paused, WorkerID: 7, Path: "/data/"}))
	require.Equal(t, 3, strings.Count(buf.String(), "\n"), "one line per frame.")

	r := NewReader(&buf)

	d, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.Sec)
	var join JoinPayload
	require.NoError(t, d.Decode(&join))
	require.Equal(t, "user", join.Username)

	d, err = r.Read()
	require.NoError(t, err)
	require.NoError(t, d.Expect(ChangeNotify))
	require.Equal(t, uint64(2), d.Sec)
	var change ChangePayload
	require.NoError(t, d.Decode(&change))
	require.Equal(t, model.RenamedTo, change.Action)
	require.Equal(t, int64(3), change.Size)

	d, err = r.Read()
	require.NoError(t, err)
	require.ErrorIs(t, d.Expect(ChangeNotify), ErrUnexpectedType)
	var status StatusPayload
	require.NoError(t, d.Decode(&status))
	require.Equal(t, model.StatusEvent{Status: model.Paused, WorkerID: 7, Path: "/data/"}, status)

	_, err = r.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestCodec_Malformed(t *testing.T) {
	r := NewReader(strings.NewReader("{not json}\n{\"tp\":4"))

	_, err := r.Read()
	require.ErrorIs(t, err, ErrUnmarshalPacket)

	_, err = r.Read()
	require.ErrorIs(t, err, ErrReadPacket, "truncated trailing frame.")

	d := &Data{Type: ChangeNotify, Payload: []byte(`{"a":"EXPLODED"}`)}
	var change ChangePayload
	require.ErrorIs(t, d.Decode(&change), ErrUnmarshalPacket)
}
