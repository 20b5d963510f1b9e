package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ivms/internal/app"
	"ivms/internal/csvexport"
	"ivms/internal/domain"
	"ivms/internal/intake"
	"ivms/internal/service"
)

func submitCmd() *cobra.Command {
	var (
		channel     string
		payloadPath string
		files       []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an invoice through the intake normalizer",
		Example: `  # Structured submission
  ivmsctl submit --channel api --payload invoice.json

  # Scanned document, fields recovered by OCR
  ivmsctl submit --channel scan --file scan.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := service.SubmitInput{Channel: domain.Channel(channel)}
			if payloadPath != "" {
				raw, err := os.ReadFile(payloadPath)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &in.Payload); err != nil {
					return fmt.Errorf("decoding payload %s: %w", payloadPath, err)
				}
			}
			for _, p := range files {
				f, err := readAttachment(p)
				if err != nil {
					return err
				}
				in.Files = append(in.Files, f)
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Intake.Submit(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", string(domain.ChannelAPI), "intake channel")
	cmd.Flags().StringVar(&payloadPath, "payload", "", "JSON payload file")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attached document (repeatable)")
	return cmd
}

func readAttachment(path string) (intake.AttachedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return intake.AttachedFile{}, err
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	return intake.AttachedFile{Name: filepath.Base(path), ContentType: ct, Content: content}, nil
}

type invoiceView struct {
	Invoice    *domain.Invoice           `json:"invoice"`
	Match      *domain.MatchRecord       `json:"match,omitempty"`
	Exceptions []domain.InvoiceException `json:"exceptions"`
	Files      []domain.FileMeta         `json:"files"`
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Print an invoice with its match record, exceptions and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				view := invoiceView{}
				if view.Invoice, err = a.Query.GetInvoice(ctx, id); err != nil {
					return err
				}
				view.Match, err = a.Query.GetMatchRecord(ctx, id)
				if err != nil && !errors.Is(err, domain.ErrMatchRecordNotFound) {
					return err
				}
				if view.Exceptions, err = a.Query.ListExceptions(ctx, id); err != nil {
					return err
				}
				if view.Files, err = a.Query.ListFiles(ctx, id); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}
}

func resolveExceptionCmd() *cobra.Command {
	var by, note string
	cmd := &cobra.Command{
		Use:   "resolve-exception <exception-id>",
		Short: "Mark an open exception as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid exception id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				exc, err := a.Exceptions.Resolve(ctx, id, note, by)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), exc)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "who resolved the exception")
	cmd.Flags().StringVar(&note, "note", "", "resolution note")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func dismissExceptionCmd() *cobra.Command {
	var by, reason string
	cmd := &cobra.Command{
		Use:   "dismiss-exception <exception-id>",
		Short: "Dismiss an open exception",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid exception id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				exc, err := a.Exceptions.Dismiss(ctx, id, reason, by)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), exc)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "who dismissed the exception")
	cmd.Flags().StringVar(&reason, "reason", "", "dismissal reason")
	_ = cmd.MarkFlagRequired("by")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		statuses []string
		limit    int
		out      string
		bom      bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the invoice register as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sts := make([]domain.InvoiceStatus, 0, len(statuses))
			for _, s := range statuses {
				sts = append(sts, domain.InvoiceStatus(s))
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				invs, err := a.Invoices.ListByStatus(ctx, sts, limit)
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					if out == "auto" {
						out = csvexport.BuildFilename(strings.Join(statuses, "_"), time.Now())
					}
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if bom {
					if _, err := w.Write(csvexport.BOM); err != nil {
						return err
					}
				}

				cw := csvexport.NewWriter(w)
				if err := cw.WriteHeader(); err != nil {
					return err
				}
				if err := cw.WriteInvoices(invs); err != nil {
					return err
				}
				cw.Flush()
				if err := cw.Error(); err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d invoices to %s\n", len(invs), out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", []string{
		string(domain.StatusPendingReview), string(domain.StatusPendingApproval), string(domain.StatusException),
	}, "statuses to include")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of invoices")
	cmd.Flags().StringVar(&out, "out", "", `output file; "auto" builds a dated name (default stdout)`)
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix a UTF-8 BOM for Excel")
	return cmd
}
