package cli

import (
	"fmt"

	"github.com/grachmannico95/wallet-webhook/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			store, err := storage.Open(cmd.Context(), storage.Options{
				Driver: cfg.Storage.Driver,
				DSN:    cfg.Storage.DSN,
				LogSQL: cfg.Storage.LogSQL,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", cfg.Storage.Driver)
			return nil
		},
	}
}
