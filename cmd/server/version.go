package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetwear/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
