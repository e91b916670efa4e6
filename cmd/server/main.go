package main

import (
	"os"

	"github.com/goalnest/goalnest/cmd/server/cmd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "goalnest",
		Short:         "Local goal store with sharing and hints",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.ServeCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.PurgeCmd())
	rootCmd.AddCommand(cmd.BackupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
