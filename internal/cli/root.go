// Package cli wires the console's cobra commands.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/AlphonseHQ/console/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"     _    _       _\n" +
		"    / \\  | |_ __ | |__   ___  _ __  ___  ___\n" +
		"   / _ \\ | | '_ \\| '_ \\ / _ \\| '_ \\/ __|/ _ \\\n" +
		"  / ___ \\| | |_) | | | | (_) | | | \\__ \\  __/\n" +
		" /_/   \\_\\_| .__/|_| |_|\\___/|_| |_|___/\\___|\n" +
		"           |_|            console\n"
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Alphonse Console - agent control surface",
	Long:  color.CyanString(logo) + "\nA server-rendered control surface for the Alphonse agent backend.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
