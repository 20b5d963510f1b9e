package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"ivms/internal/app"
)

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <invoice-id>...",
		Short: "Run the processing pipeline on the given invoices",
		Long: `Run the processing pipeline on the given invoices. Invoices already past
processing are reported as failed with an invalid transition error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Pipeline.ProcessBatch(ctx, ids))
			})
		},
	}
}

func analyzeFraudCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze-fraud <invoice-id>...",
		Short: "Run the full fraud analysis and print a batch summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Analysis.BatchAnalyzeFraud(ctx, ids))
			})
		},
	}
}

func sweepAnomaliesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep-anomalies",
		Short: "Re-check open invoices for date and terms anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be positive")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Analysis.SweepAnomalies(ctx, limit))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum number of invoices to scan")
	return cmd
}
