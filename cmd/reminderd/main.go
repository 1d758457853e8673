// Command reminderd runs the reminder service.
//
// Usage:
//
//	reminderd serve              # HTTP API plus the due-reminder sweeper
//	reminderd sweep              # Trigger due reminders once and exit
//	reminderd list --assignee x  # Print reminders
//	reminderd resynth <id>       # Retry successor synthesis for a completed reminder
//	reminderd mcp                # MCP server on stdio
//
// Configuration is read from ~/.reminderd/config.yaml and REMINDERD_*
// environment variables. A .env file in the working directory is loaded
// first when present.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/notexe/reminderd/internal/config"
)

var Version = "dev"

var (
	configPath string
	noColor    bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "reminderd",
		Short:         "reminderd - scheduled and recurring reminders",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetDefaultConfigPath(), "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(resynthCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
