package cmd

import (
	"fmt"

	"github.com/goalnest/goalnest/internal/app"
	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/logger"
	"github.com/spf13/cobra"
)

func BackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of all goals to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init("goalnest", cfg.IsDevelopment(), cfg.SentryDSN)

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			key, err := a.BackupService.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", key)
			return nil
		},
	}
}
