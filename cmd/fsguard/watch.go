package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManouchehrRasoulli/fsguard/internal/notify"
	"github.com/ManouchehrRasoulli/fsguard/pkg/config"
	"github.com/ManouchehrRasoulli/fsguard/pkg/guard"
	"github.com/ManouchehrRasoulli/fsguard/pkg/logger"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/spf13/cobra"
)

var watchFlags struct {
	recursive bool
	suffixes  []string
	backend   string
}

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Print changes below the given paths",
	Long: `Watch the given directories and print every change. "*" watches every
mounted volume and "&" every volume except the system one. Without
arguments the paths of the configuration file are watched.

SIGHUP re-acquires every watched root.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchFlags.recursive, "recursive", "r", true, "watch whole subtrees")
	watchCmd.Flags().StringSliceVarP(&watchFlags.suffixes, "suffix", "s", nil, "only report these extensions (repeatable)")
	watchCmd.Flags().StringVarP(&watchFlags.backend, "backend", "b", "", "notification backend: native or fsnotify")
	rootCmd.AddCommand(watchCmd)
}

// printer writes guard events to the console.
type printer struct {
	lg *logger.ColorLogger
}

func (p printer) OnChanged(action model.Action, path string) {
	p.lg.Printc(actionColor(action), model.ChangeEvent{Action: action, Path: path}.String())
}

func (p printer) OnStatus(status model.Status, workerID uint64, path string) {
	p.lg.Printc(logger.ColorGray, model.StatusEvent{Status: status, WorkerID: workerID, Path: path}.String())
}

func (p printer) OnError(code uint32, path string) {
	p.lg.Printc(logger.ColorRed, model.ErrorEvent{Code: code, Path: path}.String())
}

func actionColor(a model.Action) logger.Color {
	switch a {
	case model.Added:
		return logger.ColorGreen
	case model.Removed:
		return logger.ColorRed
	case model.Modified:
		return logger.ColorYellow
	}
	return logger.ColorBlue
}

// applyWatchFlags lets command line arguments override the configuration.
func applyWatchFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Paths = cfg.Paths[:0]
		for _, a := range args {
			cfg.Paths = append(cfg.Paths, config.PathConfig{Path: a, Recursive: watchFlags.recursive})
		}
	}
	if cmd.Flags().Changed("suffix") {
		cfg.Suffixes = watchFlags.suffixes
	}
	if watchFlags.backend != "" {
		cfg.Backend = watchFlags.backend
	}
}

// newGuard builds a guard for cfg and registers its paths. Failing roots
// are logged; the guard is returned as long as one root is watched.
func newGuard(cfg *config.Config, lg *logger.ColorLogger, handlers ...guard.Handler) (*guard.Guard, error) {
	backend, err := notify.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	options := []guard.Option{
		guard.WithLogger(lg.Logger),
		guard.WithBackend(backend),
		guard.WithBufferSize(cfg.BufferSize),
		guard.WithJoinWarning(cfg.JoinWarning),
	}
	for _, h := range handlers {
		options = append(options, guard.WithHandler(h))
	}
	g := guard.New(options...)
	g.AddSuffixes(cfg.Suffixes)

	for _, p := range cfg.Paths {
		if err := g.AddPath(p.Path, p.Recursive); err != nil {
			lg.Printcf(logger.ColorRed, "guard error :: add %s, %v", p.Path, err)
		}
	}
	if len(g.GetPaths()) == 0 {
		g.Close()
		return nil, fmt.Errorf("no path could be watched: %s", g.LastError())
	}
	return g, nil
}

// runGuard starts g and blocks until ctx ends. A restart signal (SIGHUP)
// re-acquires every root.
func runGuard(ctx context.Context, g *guard.Guard, lg *logger.ColorLogger) {
	hup := make(chan os.Signal, 1)
	if len(restartSignals) > 0 {
		signal.Notify(hup, restartSignals...)
		defer signal.Stop(hup)
	}

	g.Start()
	for path, recursive := range g.GetPaths() {
		lg.Printcf(logger.ColorGreen, "guard :: watching %s (recursive=%t)", path, recursive)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			lg.Printc(logger.ColorBlue, "guard :: restarting")
			if err := g.Restart(); err != nil {
				lg.Printcf(logger.ColorRed, "guard error :: restart, %v", err)
			}
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWatchFlags(cmd, cfg, args)
	if len(cfg.Paths) == 0 {
		return fmt.Errorf("nothing to watch: pass a path or configure paths")
	}

	lg, closer := newLogger(cfg)
	defer closer.Close()

	g, err := newGuard(cfg, lg, printer{lg: lg})
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runGuard(ctx, g, lg)
	return nil
}
