package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var actingUser string
	var jsonOutput bool

	ctx := newCommandContext(&configFlag, &actingUser, &jsonOutput)

	rootCmd := &cobra.Command{
		Use:           "lauschr",
		Short:         "LauschR podcast feed manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&actingUser, "as", "", "Act as this user ID and enforce feed permissions")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Write machine-readable JSON instead of tables")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newFeedCommand(ctx))
	rootCmd.AddCommand(newEpisodeCommand(ctx))
	rootCmd.AddCommand(newCollabCommand(ctx))
	rootCmd.AddCommand(newRSSCommand(ctx))
	rootCmd.AddCommand(newUserCommand(ctx))
	rootCmd.AddCommand(newPermCommand(ctx))

	return rootCmd
}
