package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracecap",
	Short: "In-process tracing capture agent",
	Long:  "Captures transactions, nested spans, and errors in-process and ships them\nto a collector as wire-ready intake records.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
