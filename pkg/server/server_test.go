package server

import (
	"errors"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/auth"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

var (
	lg *log.Logger
)

func TestMain(m *testing.M) {
	lg = log.New(os.Stdout, "test --> ", 1|4)
	os.Exit(m.Run())
}

func startServer(t *testing.T, options ...Option) *Server {
	t.Helper()
	s := NewServer("localhost:0", append([]Option{WithLogger(lg)}, options...)...)
	require.NoError(t, s.Listen(), "server listening !")

	done := make(chan error, 1)
	go func() { done <- s.Run() }()
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "close server !")
		require.ErrorIs(t, <-done, ErrServerClosed)
	})
	return s
}

func newStore(t *testing.T) *auth.Store {
	t.Helper()
	store, err := auth.Open(filepath.Join(t.TempDir(), "users"), auth.WithCost(bcrypt.MinCost))
	require.NoError(t, err)
	require.NoError(t, store.Add("user", "secret"))
	return store
}

type peer struct {
	conn net.Conn
	r    *protocol.Reader
	w    *protocol.Writer
}

func dial(t *testing.T, s *Server) *peer {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{conn: conn, r: protocol.NewReader(conn), w: protocol.NewWriter(conn)}
}

func (p *peer) join(t *testing.T, username, password string) protocol.AckJoinPayload {
	t.Helper()
	require.NoError(t, p.w.Send(protocol.Join, protocol.JoinPayload{Username: username, Password: password}))
	d, err := p.r.Read()
	require.NoError(t, err)
	require.NoError(t, d.Expect(protocol.AckJoin))
	ack := protocol.AckJoinPayload{}
	require.NoError(t, d.Decode(&ack))
	return ack
}

func (p *peer) subscribe(t *testing.T, s *Server, prefix string, subscribers int) {
	t.Helper()
	require.NoError(t, p.w.Send(protocol.SubscribePath, protocol.SubscribePathPayload{Path: prefix, Id: "test"}))
	require.Eventually(t, func() bool { return s.hub.len() == subscribers }, 5*time.Second, 10*time.Millisecond)
}

func (p *peer) next(t *testing.T) *protocol.Data {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	d, err := p.r.Read()
	require.NoError(t, err)
	return d
}

func TestMatchPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		root   bool
		want   bool
	}{
		{prefix: "", path: "/data/x.log", want: true},
		{prefix: "/data/logs/", path: "/data/logs/x.log", want: true},
		{prefix: "/data/logs/", path: "/data/other/x.log", want: false},
		{prefix: "/data/logs/", path: "/data/lo", want: false},
		{prefix: "/data/logs/", path: "/data/", root: true, want: true},
		{prefix: "/data/logs/", path: "/srv/", root: true, want: false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, matchPrefix(tt.prefix, tt.path, tt.root), "prefix %q path %q", tt.prefix, tt.path)
	}
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	h := newHub()
	sub, cancel := h.subscribe("", 1)

	for i := 0; i < 3; i++ {
		d, err := protocol.NewData(protocol.ChangeNotify, nil)
		require.NoError(t, err)
		h.publish("/data/x", false, d)
	}
	require.Len(t, sub.frames, 1)
	require.Equal(t, uint64(2), sub.dropped.Load())

	cancel()
	cancel()
	require.Zero(t, h.len())
	_, open := <-sub.frames
	require.True(t, open, "buffered frame is still readable.")
	_, open = <-sub.frames
	require.False(t, open)
}

func TestServer_ListenAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := NewServer("localhost:0", WithLogger(lg))
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, s.Close())
	require.True(t, errors.Is(<-done, ErrServerClosed))

	// the server dropped the idle connection
	_, err = protocol.NewReader(conn).Read()
	require.Error(t, err)
}

func TestServer_JoinWithoutStore(t *testing.T) {
	s := startServer(t)
	p := dial(t, s)
	require.True(t, p.join(t, "", "").Ok)
}

func TestServer_JoinRejected(t *testing.T) {
	s := startServer(t, WithAuth(newStore(t)))
	p := dial(t, s)

	ack := p.join(t, "user", "wrong")
	require.False(t, ack.Ok)
	require.Equal(t, auth.ErrBadCredentials.Error(), ack.Msg)

	_, err := p.r.Read()
	require.ErrorIs(t, err, io.EOF, "server closes a rejected connection.")
}

func TestServer_JoinRequiresJoinFrame(t *testing.T) {
	s := startServer(t, WithAuth(newStore(t)))
	p := dial(t, s)

	require.NoError(t, p.w.Send(protocol.SubscribePath, protocol.SubscribePathPayload{}))
	d := p.next(t)
	ack := protocol.AckJoinPayload{}
	require.NoError(t, d.Decode(&ack))
	require.False(t, ack.Ok)
	require.Equal(t, "invalid packet type", ack.Msg)
}

func TestServer_OneSessionPerUser(t *testing.T) {
	store := newStore(t)
	s := startServer(t, WithAuth(store))

	first := dial(t, s)
	require.True(t, first.join(t, "user", "secret").Ok)
	first.subscribe(t, s, "", 1)

	second := dial(t, s)
	ack := second.join(t, "user", "secret")
	require.False(t, ack.Ok)
	require.Contains(t, ack.Msg, auth.ErrSessionActive.Error())

	require.NoError(t, first.conn.Close())
	require.Eventually(t, func() bool {
		_, active := store.Session("user")
		return !active
	}, 5*time.Second, 10*time.Millisecond)

	third := dial(t, s)
	require.True(t, third.join(t, "user", "secret").Ok)
}

func TestServer_StreamsEvents(t *testing.T) {
	dir := t.TempDir()
	logs := filepath.Join(dir, "logs")
	require.NoError(t, os.Mkdir(logs, 0o755))
	file := filepath.Join(logs, "x.log")
	require.NoError(t, os.WriteFile(file, []byte("hello world\n"), 0o644))

	s := startServer(t, WithMIME(true))
	p := dial(t, s)
	require.True(t, p.join(t, "", "").Ok)
	p.subscribe(t, s, logs, 1)

	root := dir + string(os.PathSeparator)
	s.OnStatus(model.Started, 1, root)
	s.OnChanged(model.Added, filepath.Join(dir, "outside.txt"))
	s.OnChanged(model.Added, file)
	s.OnChanged(model.Removed, filepath.Join(logs, "gone.log"))
	s.OnError(2, root)

	d := p.next(t)
	status := protocol.StatusPayload{}
	require.NoError(t, d.Decode(&status))
	require.Equal(t, model.StatusEvent{Status: model.Started, WorkerID: 1, Path: root}, status)

	d = p.next(t)
	require.NoError(t, d.Expect(protocol.ChangeNotify))
	change := protocol.ChangePayload{}
	require.NoError(t, d.Decode(&change))
	require.Equal(t, file, change.Path)
	require.Equal(t, int64(12), change.Size)
	require.False(t, change.ModTime.IsZero())
	require.True(t, strings.HasPrefix(change.MIME, "text/plain"), change.MIME)

	d = p.next(t)
	change = protocol.ChangePayload{}
	require.NoError(t, d.Decode(&change))
	require.Equal(t, model.Removed, change.Action)
	require.Zero(t, change.Size)
	require.Empty(t, change.MIME)

	d = p.next(t)
	require.NoError(t, d.Expect(protocol.ErrorNotify))
	require.Greater(t, d.Sec, uint64(1))
}
