package cmd

import (
	"fmt"

	"github.com/goalnest/goalnest/internal/app"
	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/logger"
	"github.com/spf13/cobra"
)

func PurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove trashed goals past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init("goalnest", cfg.IsDevelopment(), cfg.SentryDSN)

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.GoalService.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d goals\n", n)
			return nil
		},
	}
}
