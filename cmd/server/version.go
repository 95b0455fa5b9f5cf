package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("flowpulse version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
