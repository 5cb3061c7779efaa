// Package cmd provides the command-line interface of lagbuffer.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lagbuffer",
	Short: "Lagbuffer reconciles states with events that arrive out of order.",
	Long: `Lagbuffer reconciles states with events that arrive out of order. ` +
		`The CLI replays generated event streams through the reconcilers and ` +
		`checks them against a full replay.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newReplayCmd())
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Handlers registered with atexit run before the program
// exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
