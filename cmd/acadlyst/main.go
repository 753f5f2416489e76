// Acadlyst is an AI study assistant: it turns PDFs, pasted text, and
// YouTube lectures into summaries, quizzes, and a chat-ready document
// index, processing the slow AI work through a durable job queue.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SnehaChouksey/Acadlyst/logger"
)

var (
	flagConfig string
	flagJSON   bool
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "acadlyst",
	Short: "Acadlyst - AI study assistant backend",
	Long: `Acadlyst - AI study assistant backend.

Turns PDFs, pasted text, and YouTube lectures into summaries, quizzes,
and a chat-ready document index. AI work runs through a durable SQLite
job queue; clients poll job status until completion.

Examples:
  acadlyst serve                 # Start the API server and job workers
  acadlyst serve --config my.toml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(flagJSON, flagDebug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: search for acadlyst.toml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json-logs", false, "Emit JSON logs")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
