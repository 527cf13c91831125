package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManouchehrRasoulli/fsguard/pkg/client"
	"github.com/ManouchehrRasoulli/fsguard/pkg/logger"
	"github.com/ManouchehrRasoulli/fsguard/pkg/model"
	"github.com/ManouchehrRasoulli/fsguard/pkg/protocol"
	"github.com/spf13/cobra"
)

var tailFlags struct {
	address  string
	username string
	prefix   string
	tls      bool
	insecure bool
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the change stream of a fsguard server",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&tailFlags.address, "address", "a", "", "server address (overrides the configuration)")
	tailCmd.Flags().StringVarP(&tailFlags.username, "user", "u", "", "join as this user; the password is prompted for")
	tailCmd.Flags().StringVarP(&tailFlags.prefix, "prefix", "p", "", "only stream paths below this prefix")
	tailCmd.Flags().BoolVar(&tailFlags.tls, "tls", false, "connect with TLS")
	tailCmd.Flags().BoolVar(&tailFlags.insecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.AddCommand(tailCmd)
}

func describeChange(p protocol.ChangePayload) string {
	s := model.ChangeEvent{Action: p.Action, Path: p.Path}.String()
	switch {
	case p.Dir:
		s += " dir"
	case !p.ModTime.IsZero():
		s += fmt.Sprintf(" size=%d modified=%s", p.Size, p.ModTime.Format("2006-01-02 15:04:05"))
	}
	if p.MIME != "" {
		s += " mime=" + p.MIME
	}
	return s
}

func runTail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cc := cfg.Client
	if tailFlags.address != "" {
		cc.Address = tailFlags.address
	}
	if tailFlags.prefix != "" {
		cc.Prefix = tailFlags.prefix
	}
	if cmd.Flags().Changed("tls") {
		cc.TLS = tailFlags.tls
	}
	if cmd.Flags().Changed("insecure") {
		cc.Insecure = tailFlags.insecure
	}
	if tailFlags.username != "" {
		cc.Username = tailFlags.username
		cc.Password = ""
	}
	if cc.Username != "" && cc.Password == "" {
		if cc.Password, err = readPassword(fmt.Sprintf("Password for %s: ", cc.Username)); err != nil {
			return err
		}
	}

	lg, closer := newLogger(cfg)
	defer closer.Close()

	options := []client.Option{
		client.WithLogger(lg.Logger),
		client.WithPrefix(cc.Prefix),
		client.WithChangeHook(func(p protocol.ChangePayload) {
			lg.Printc(actionColor(p.Action), describeChange(p))
		}),
		client.WithStatusHook(func(e model.StatusEvent) {
			lg.Printc(logger.ColorGray, e.String())
		}),
		client.WithErrorHook(func(e model.ErrorEvent) {
			lg.Printc(logger.ColorRed, e.String())
		}),
	}
	if cc.Username != "" {
		options = append(options, client.WithCredentials(cc.Username, cc.Password))
	}
	if cc.TLS {
		options = append(options, client.WithTLS(&tls.Config{InsecureSkipVerify: cc.Insecure}))
	}

	c := client.NewClient(cc.Address, options...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	return c.Run()
}
