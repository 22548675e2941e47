package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/grachmannico95/wallet-webhook/internal/app"
	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/spf13/cobra"
)

type options struct {
	driver   string
	dsn      string
	operator string
	logLevel string
}

// NewRootCommand builds the txctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "txctl",
		Short: "Operate the wallet transaction store",
		Long: `txctl runs maintenance against the same storage the webhook server uses.

Configuration comes from the environment (and .env), like the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "Storage driver override (sqlite, mysql, memory)")
	rootCmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Storage DSN override")
	rootCmd.PersistentFlags().StringVar(&opts.operator, "operator", "", "Operator name recorded on changes")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newPurgeCmd(opts))
	rootCmd.AddCommand(newResetCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))

	return rootCmd
}

// Execute runs the root command with process arguments.
func Execute(version string) error {
	rootCmd := NewRootCommand()
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func (o *options) config() (*config.Config, error) {
	cfg := config.Load()
	if o.driver != "" {
		cfg.Storage.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Storage.DSN = o.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *options) logger() *logger.Logger {
	return logger.New(o.logLevel)
}

func (o *options) context(ctx context.Context, cfg *config.Config) context.Context {
	operator := o.operator
	if operator == "" {
		operator = cfg.Operator.DefaultName
	}
	return logger.WithOperator(ctx, operator)
}

// withApp opens storage without the event bus, runs fn, and closes it.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, cfg *config.Config, out io.Writer) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	log := o.logger()
	defer log.Sync()

	ctx := o.context(cmd.Context(), cfg)

	a, err := app.New(ctx, cfg, log, app.WithoutEventBus())
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	return fn(ctx, a, cfg, cmd.OutOrStdout())
}
