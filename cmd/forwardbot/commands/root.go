// Package commands implements the forwardbot command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "forwardbot",
		Short: "Telegram bot that forwards collected messages to channels at a scheduled time",
		// Without a subcommand the bot runs.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to config file (yaml or json)")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file loaded before the config")

	root.AddCommand(newRunCmd(), newPostsCmd(), newChannelsCmd())
	return root
}

var rootCmd = newRootCmd()

// Execute runs the root command. Errors are printed by the printer helpers.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
