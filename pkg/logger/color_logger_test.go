package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManouchehrRasoulli/fsguard/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestColorLogger_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := NewColorLogger(log.New(&buf, "test --> ", 0))

	c.Printcf(ColorGreen, "watching %s", "/data/")
	c.Printc(ColorRed, "failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{"test --> watching /data/", "test --> failed"}, lines)
	require.NotContains(t, buf.String(), "\x1b[", "no escape codes for a buffer.")
}

func TestNew_RotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fsguard.log")
	var stdout bytes.Buffer

	lg, closer := New(config.LogConfig{File: file, MaxSizeMB: 1}, &stdout, "fsguard --> ")
	lg.Printcf(ColorBlue, "guard :: worker %d started", 1)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "fsguard --> ")
	require.Contains(t, string(data), "guard :: worker 1 started")
	require.Empty(t, stdout.String())
}

func TestNew_Stdout(t *testing.T) {
	var stdout bytes.Buffer
	lg, closer := New(config.LogConfig{NoColor: true}, &stdout, "")
	lg.Printc(ColorYellow, "plain")
	require.NoError(t, closer.Close())
	require.Contains(t, stdout.String(), "plain")
}
