package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowpulse",
	Short: "Background execution lifecycle service",
	Long: `flowpulse runs the background lifecycle service against a simulated
host: grant tracking, deferred refresh scheduling and power monitoring,
exposed over REST and WebSocket.`,
	SilenceUsage: true,
}

// serviceAddr is where listen, call and status find a running service
var serviceAddr string

func init() {
	rootCmd.PersistentFlags().StringVarP(&serviceAddr, "addr", "a", "localhost:8000", "service address for client commands")
}
