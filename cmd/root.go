package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"callouts/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "callouts",
	Short: "Extract and index callout codes from scanned drawing sets",
	Long: `callouts finds drawing reference tags such as PT-1, M2 or A-3 and
vocabulary terms in multi-page scanned documents. Pages are OCRed in
parallel, codes split across tokens are reconstructed, and the findings
are aggregated into a search index stored next to the page artifacts.

Run a job directly with "process", serve the HTTP API with "serve", or
distribute jobs over Redis with "enqueue" and "worker".`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("callouts executed")

		fmt.Println("Welcome to callouts!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
