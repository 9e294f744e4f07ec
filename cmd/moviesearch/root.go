package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/moviegpt/internal/logging"
)

func newRootCommand() *cobra.Command {
	var envFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "moviesearch",
		Short:         "Find movies from a free-text description",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			} else {
				_ = godotenv.Load()
			}
			if verbose {
				logging.Setup("")
			} else {
				logging.Discard()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
