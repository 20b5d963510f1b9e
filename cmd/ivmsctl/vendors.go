package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ivms/internal/repository/postgres"
	"ivms/internal/vendorsheet"
)

func seedVendorsCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed-vendors <file.xlsx>",
		Short: "Import the vendor master from an Excel workbook",
		Long: `Import the vendor master from the first sheet of an Excel workbook.

Row 1 is the header. Recognized columns: id, name, tax_id, email, website,
bank_account, routing_number, payment_terms, score. Rows without an id get a
stable id derived from the vendor name, so re-running the import updates
existing vendors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sheet, err := vendorsheet.Read(f)
			if err != nil {
				return err
			}
			if dryRun {
				return printJSON(cmd.OutOrStdout(), sheet)
			}

			cfg, zl, err := env()
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			db, err := postgres.NewDB(&cfg.DB)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			repo := postgres.NewVendorRepo(db)
			for i := range sheet.Vendors {
				if err := repo.Upsert(cmd.Context(), &sheet.Vendors[i]); err != nil {
					return fmt.Errorf("upserting vendor %q: %w", sheet.Vendors[i].Name, err)
				}
			}
			zl.Info("seedVendors: imported",
				zap.Int("vendors", len(sheet.Vendors)),
				zap.Int("skipped", len(sheet.Skipped)))

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"imported": len(sheet.Vendors),
				"skipped":  sheet.Skipped,
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the workbook and print the vendors without writing")
	return cmd
}
