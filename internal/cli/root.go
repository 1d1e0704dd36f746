// Package cli implements the orchestrate command line.
package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	EnvFile string
	JSON    bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:           "orchestrate",
	Short:         "Calendar assistant tool orchestrator",
	Long:          "orchestrate answers calendar questions by letting a language model plan and call calendar, email and UTCP tools.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.EnvFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
