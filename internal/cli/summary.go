package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/grachmannico95/wallet-webhook/internal/app"
	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/internal/service"
	"github.com/spf13/cobra"
)

func newSummaryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the transaction summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config, out io.Writer) error {
				summary, err := a.Service.Summary(ctx, service.SummaryQuery{
					Limit:  limit,
					Status: domain.TransactionStatus(status),
				})
				if err != nil {
					return err
				}

				return writeJSON(out, summary)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Rows per list, defaults to QUERY_DEFAULT_LIMIT")
	cmd.Flags().StringVar(&status, "status", "", "Only fill one list (new, approved, cancelled)")

	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history [transaction-id]",
		Short: "Print the lifecycle history of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config, out io.Writer) error {
				entries, err := a.Service.History(ctx, args[0])
				if err != nil {
					return err
				}

				return writeJSON(out, entries)
			})
		},
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
