package main

import (
	"io"
	"os"

	"github.com/ManouchehrRasoulli/fsguard/pkg/config"
	"github.com/ManouchehrRasoulli/fsguard/pkg/logger"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "fsguard",
	Short: "Watch directory trees and volumes for file changes",
	Long: `fsguard watches directories, or every mounted volume, for files being
added, removed, modified and renamed. Changes can be printed locally or
streamed to remote subscribers over TCP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (.yml, .yaml or .toml)")
}

// loadConfig reads the --config file, or returns defaults when none is given.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.ReadConfig(configFile)
}

func newLogger(cfg *config.Config) (*logger.ColorLogger, io.Closer) {
	return logger.New(cfg.Log, os.Stdout, "fsguard --> ")
}
