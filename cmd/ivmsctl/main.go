// Command ivmsctl is the operator CLI for the invoice pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ivms/internal/app"
	"ivms/internal/config"
	"ivms/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "ivmsctl",
	Short:         "Operate the invoice intake and processing pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ivmsctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		migrateCmd(),
		processCmd(),
		analyzeFraudCmd(),
		sweepAnomaliesCmd(),
		seedVendorsCmd(),
		submitCmd(),
		showCmd(),
		resolveExceptionCmd(),
		dismissExceptionCmd(),
		exportCmd(),
	)
}

// env loads configuration and a logger.
func env() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	// Command output goes to stdout; logs must not interleave with it.
	if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, zl, nil
}

// withApp wires the full application for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, zl, err := env()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	a, err := app.New(cmd.Context(), cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid invoice id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
