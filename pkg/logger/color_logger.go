package logger

import (
	"fmt"
	"io"
	"log"

	"github.com/ManouchehrRasoulli/fsguard/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flags is the timestamp layout used by every fsguard logger.
const Flags = log.Ldate | log.Lmicroseconds

type ColorLogger struct {
	*log.Logger
	renderer *lipgloss.Renderer
	plain    bool
}

// Color is an ANSI palette index understood by lipgloss.
type Color string

const (
	ColorBlack  Color = "0"
	ColorRed    Color = "1"
	ColorGreen  Color = "2"
	ColorYellow Color = "3"
	ColorBlue   Color = "4"
	ColorGray   Color = "8"
)

// NewColorLogger wraps lg. Colors are only emitted when the logger writes to
// a terminal that supports them.
func NewColorLogger(lg *log.Logger) *ColorLogger {
	return &ColorLogger{
		Logger:   lg,
		renderer: lipgloss.NewRenderer(lg.Writer()),
	}
}

// NewPlainLogger wraps lg and never emits colors.
func NewPlainLogger(lg *log.Logger) *ColorLogger {
	c := NewColorLogger(lg)
	c.plain = true
	return c
}

func (c *ColorLogger) paint(color Color, s string) string {
	if c.plain {
		return s
	}
	return c.renderer.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
}

func (c *ColorLogger) Printcf(color Color, format string, args ...interface{}) {
	c.Print(c.paint(color, fmt.Sprintf(format, args...)))
}

func (c *ColorLogger) Printc(color Color, s string) {
	c.Print(c.paint(color, s))
}

// Writer returns the destination for log output: a size-rotated file when
// cfg names one, stdout otherwise. The returned closer is a no-op for stdout.
func Writer(cfg config.LogConfig, stdout io.Writer) io.WriteCloser {
	if cfg.File == "" {
		return nopCloser{stdout}
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// New builds the process logger for cfg.
func New(cfg config.LogConfig, stdout io.Writer, prefix string) (*ColorLogger, io.Closer) {
	w := Writer(cfg, stdout)
	lg := log.New(w, prefix, Flags)
	if cfg.NoColor || cfg.File != "" {
		return NewPlainLogger(lg), w
	}
	return NewColorLogger(lg), w
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
