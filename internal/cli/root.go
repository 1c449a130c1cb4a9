// Package cli provides the command-line interface for channel-posts.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "channel-posts",
	Short:         "Mirror the latest Telegram channel posts into a static site",
	Long:          "channel-posts reads recent posts of one Telegram channel, normalizes them, downloads their media and writes a JSON document a static site can render. It can also serve that document as RSS/Atom feeds.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "channel-posts %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config.{yaml,yml,json,toml} in the working directory)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
