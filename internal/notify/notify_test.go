package notify

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// drain runs the request cycle of n until it stops, forwarding records.
func drain(t *testing.T, n Notifier) (<-chan Record, <-chan error) {
	t.Helper()
	records := make(chan Record, 256)
	done := make(chan error, 1)
	require.NoError(t, n.Rearm(), "rearm notifier.")

	go func() {
		buf := make([]byte, DefaultBufferSize)
		for {
			recs, err := n.Next(buf)
			for _, r := range recs {
				records <- r
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()
	return records, done
}

func waitFor(t *testing.T, records <-chan Record, want Record) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-records:
			if r == want {
				return
			}
		case <-deadline:
			t.Fatalf("no %s record for %q", want.Action, want.Name)
		}
	}
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	require.Equal(t, Native, b)

	b, err = ParseBackend("fsnotify")
	require.NoError(t, err)
	require.Equal(t, Fsnotify, b)

	_, err = ParseBackend("kqueue")
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing"), true, Native)
	require.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Open(file, true, Native)
	require.ErrorIs(t, err, ErrNotDirectory)

	_, err = Open(dir, true, Backend("bogus"))
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNotifier_Backends(t *testing.T) {
	for _, backend := range []Backend{Native, Fsnotify} {
		t.Run(string(backend), func(t *testing.T) {
			defer goleak.VerifyNone(t)
			dir := t.TempDir()
			require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

			n, err := Open(dir, true, backend)
			require.NoError(t, err, "open notifier.")

			records, done := drain(t, n)

			require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
			waitFor(t, records, Record{Action: model.Added, Name: "a.txt"})

			require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), nil, 0o644))
			waitFor(t, records, Record{Action: model.Added, Name: filepath.Join("sub", "b.txt")})

			require.NoError(t, os.Remove(filepath.Join(dir, "a.txt")))
			waitFor(t, records, Record{Action: model.Removed, Name: "a.txt"})

			require.NoError(t, n.Interrupt())
			select {
			case err := <-done:
				require.ErrorIs(t, err, ErrStopped)
			case <-time.After(5 * time.Second):
				t.Fatal("notifier did not stop")
			}
			require.NoError(t, n.Close())
		})
	}
}

func TestNotifier_RearmAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()

	n, err := Open(dir, false, Native)
	require.NoError(t, err)
	defer n.Close()

	// a stop raised before the run starts is consumed by Rearm
	require.NoError(t, n.Interrupt())
	records, done := drain(t, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), nil, 0o644))
	waitFor(t, records, Record{Action: model.Added, Name: "c.txt"})

	require.NoError(t, n.Interrupt())
	require.True(t, errors.Is(<-done, ErrStopped))
}

func TestNotifier_RootRemoved(t *testing.T) {
	defer goleak.VerifyNone(t)
	parent := t.TempDir()
	dir := filepath.Join(parent, "watched")
	require.NoError(t, os.Mkdir(dir, 0o755))

	n, err := Open(dir, false, Native)
	require.NoError(t, err)
	defer n.Close()

	_, done := drain(t, n)
	require.NoError(t, os.Remove(dir))

	select {
	case err := <-done:
		require.ErrorIs(t, err, os.ErrNotExist)
	case <-time.After(5 * time.Second):
		t.Fatal("root removal not reported")
	}
}

func TestNotifier_ChangesBeforeFirstRunAreDropped(t *testing.T) {
	for _, backend := range []Backend{Native, Fsnotify} {
		t.Run(string(backend), func(t *testing.T) {
			defer goleak.VerifyNone(t)
			dir := t.TempDir()

			n, err := Open(dir, true, backend)
			require.NoError(t, err)
			defer n.Close()

			require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), nil, 0o644))
			records, done := drain(t, n)

			require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.txt"), nil, 0o644))
			deadline := time.After(5 * time.Second)
		wait:
			for {
				select {
				case r := <-records:
					require.NotEqual(t, "stale.txt", r.Name)
					if r == (Record{Action: model.Added, Name: "fresh.txt"}) {
						break wait
					}
				case <-deadline:
					t.Fatal("no record for fresh.txt")
				}
			}

			require.NoError(t, n.Interrupt())
			require.ErrorIs(t, <-done, ErrStopped)
		})
	}
}
