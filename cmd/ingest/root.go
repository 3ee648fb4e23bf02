package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	app := &app{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Media ingest pipeline: producer, worker and replicator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(newUploadCommand(app))
	rootCmd.AddCommand(newWorkerCommand(app))
	rootCmd.AddCommand(newSyncCommand(app))
	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newItemsCommand(app))

	return rootCmd
}

// resolveConfigPath: flag dulu, lalu CONFIG_PATH, terakhir config.yaml
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}
