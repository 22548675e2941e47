package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/app"
	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/spf13/cobra"
)

func newPurgeCmd(opts *options) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete transactions older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config, out io.Writer) error {
				maxAge := olderThan
				if maxAge <= 0 {
					maxAge = cfg.Retention.MaxAge
				}

				purged, err := a.Service.Purge(ctx, maxAge)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Purged %d transaction(s) older than %s\n", purged, maxAge)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff, defaults to RETENTION_MAX_AGE")

	return cmd
}
