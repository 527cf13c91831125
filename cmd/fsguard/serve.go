package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManouchehrRasoulli/fsguard/pkg/auth"
	"github.com/ManouchehrRasoulli/fsguard/pkg/logger"
	"github.com/ManouchehrRasoulli/fsguard/pkg/server"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	address string
}

var serveCmd = &cobra.Command{
	Use:   "serve [path...]",
	Short: "Stream changes to subscribers over TCP",
	Long: `Watch the given paths (or the configured ones) and stream every change,
status and error event to connected subscribers. TLS and password
authentication are enabled through the server section of the
configuration file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.address, "address", "a", "", "listen address (overrides the configuration)")
	serveCmd.Flags().BoolVarP(&watchFlags.recursive, "recursive", "r", true, "watch whole subtrees")
	serveCmd.Flags().StringSliceVarP(&watchFlags.suffixes, "suffix", "s", nil, "only report these extensions (repeatable)")
	serveCmd.Flags().StringVarP(&watchFlags.backend, "backend", "b", "", "notification backend: native or fsnotify")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWatchFlags(cmd, cfg, args)
	if serveFlags.address != "" {
		cfg.Server.Address = serveFlags.address
	}
	if len(cfg.Paths) == 0 {
		return fmt.Errorf("nothing to watch: pass a path or configure paths")
	}

	lg, closer := newLogger(cfg)
	defer closer.Close()

	options := []server.Option{
		server.WithLogger(lg.Logger),
		server.WithMIME(cfg.Server.MIME),
		server.WithQueueSize(cfg.Server.QueueSize),
	}
	if cfg.Server.TLS.Cert != "" || cfg.Server.TLS.Key != "" {
		options = append(options, server.WithTLS(&server.ServerTLS{Cert: cfg.Server.TLS.Cert, Key: cfg.Server.TLS.Key}))
	}
	if cfg.Server.PwFile != "" {
		store, err := auth.Open(cfg.Server.PwFile)
		if err != nil {
			return fmt.Errorf("open password file: %w", err)
		}
		options = append(options, server.WithAuth(store))
	}

	srv := server.NewServer(cfg.Server.Address, options...)
	if err = srv.Listen(); err != nil {
		return err
	}

	g, err := newGuard(cfg, lg, srv)
	if err != nil {
		_ = srv.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run()
		stop()
	}()

	runGuard(ctx, g, lg)

	g.Close()
	lg.Printc(logger.ColorBlue, "server :: shutting down")
	if err = srv.Close(); err != nil {
		lg.Printcf(logger.ColorRed, "server error :: close, %v", err)
	}
	err = <-done
	if errors.Is(err, server.ErrServerClosed) {
		err = nil
	}
	return err
}
