// Package commands provides the CLI commands for the easel server.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel  string
	logPretty bool
)

var rootCmd = &cobra.Command{
	Use:   "easel-server",
	Short: "easel - AI agent sessions for canvas widgets",
	Long: `easel-server hosts concurrent AI agent sessions behind an HTTP API.
Each session runs an independent conversation loop against the model,
dispatches tool calls in parallel, and streams its output over SSE.

Run 'easel-server serve' to start the server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("easel-server %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
