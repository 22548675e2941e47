package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/grachmannico95/wallet-webhook/internal/app"
	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/spf13/cobra"
)

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "reset [approved|cancelled]",
		Short:     "Return every approved or cancelled transaction to new",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"approved", "cancelled"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config, out io.Writer) error {
				var (
					count int
					err   error
				)
				if args[0] == "approved" {
					count, err = a.Service.ResetApproved(ctx)
				} else {
					count, err = a.Service.ResetCancelled(ctx)
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Restored %d %s transaction(s)\n", count, args[0])
				return nil
			})
		},
	}
}
