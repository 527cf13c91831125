package main

import (
	"fmt"

	"github.com/ManouchehrRasoulli/fsguard/internal/volume"
	"github.com/spf13/cobra"
)

var exceptSystem bool

var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List the volumes a wildcard watch would cover",
	RunE: func(cmd *cobra.Command, _ []string) error {
		set := volume.All
		if exceptSystem {
			set = volume.ExceptSystem
		}
		roots, err := volume.Resolve(set)
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	volumesCmd.Flags().BoolVarP(&exceptSystem, "except-system", "x", false, "leave out the volume of the OS installation")
	rootCmd.AddCommand(volumesCmd)
}
