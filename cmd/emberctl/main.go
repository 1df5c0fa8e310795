// Command emberctl is the Ember operator CLI.
//
// Usage:
//
//	emberctl state show +15550001
//	emberctl baseline +15550001
//	emberctl replay --file snapshots.jsonl --workers 4 --dry-run
//	emberctl migrate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/ember/internal/bootstrap"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/transport"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "emberctl",
		Short:        "Ember operator CLI",
		SilenceUsage: true,
	}

	root.AddCommand(stateCmd())
	root.AddCommand(baselineCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// state command
// --------------------------------------------------------------------------

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect stored user state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <identity>",
		Short: "Print the stored record for an identity as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(false, func(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime) error {
				st, err := rt.Service.State(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load state: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// baseline command
// --------------------------------------------------------------------------

func baselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline <identity>",
		Short: "Print the baseline computed from the identity's window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(false, func(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime) error {
				b, err := rt.Service.Baseline(ctx, args[0])
				if err != nil {
					return fmt.Errorf("compute baseline: %w", err)
				}
				if b == nil {
					logger.Info("Not enough history for a baseline",
						"identity", args[0], "min_samples", cfg.MinSamples)
				}
				return printJSON(cmd.OutOrStdout(), b)
			})
		},
	}
}

// --------------------------------------------------------------------------
// replay command
// --------------------------------------------------------------------------

func replayCmd() *cobra.Command {
	var (
		file    string
		workers int
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed a JSONL file of {identity, snapshot} lines through the check-in service",
		Long: `Replays snapshots in file order per identity. Identities are processed
concurrently (bounded by --workers). With --dry-run, outbound messages are
logged instead of delivered and nothing is written to the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open replay file: %w", err)
			}
			defer f.Close()

			lines, err := readReplay(f)
			if err != nil {
				return err
			}

			return withRuntime(dryRun, func(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime) error {
				sum, err := replay(ctx, rt.Service, lines, workers, logger)
				logger.Info("Replay finished",
					"identities", sum.Identities,
					"processed", sum.Processed.Load(),
					"invalid", sum.Invalid.Load(),
					"anomalies", sum.Anomalies.Load(),
					"sent", sum.Sent.Load())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSONL file of {\"identity\", \"snapshot\"} objects")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent identities")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log outbound messages and discard state changes")
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the state schema for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			backend, err := bootstrap.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.Ping(ctx); err != nil {
				return fmt.Errorf("ping store: %w", err)
			}
			logger.Info("Schema up to date", "driver", cfg.StoreDriver)
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// withRuntime handles config loading, store wiring, and context cancellation.
// A dry run logs outbound messages and keeps every write in memory, so the
// durable store is read but never changed.
func withRuntime(dryRun bool, fn func(ctx context.Context, cfg *config.Config, rt *bootstrap.Runtime) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	var sender transport.Sender
	if dryRun {
		backend = newDryRunBackend(backend)
		sender = transport.NewLogSender(logger)
	}

	rt, err := bootstrap.NewWithBackend(cfg, backend, sender, nil, logger)
	if err != nil {
		_ = backend.Close()
		return err
	}
	defer rt.Close()

	return fn(ctx, cfg, rt)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
