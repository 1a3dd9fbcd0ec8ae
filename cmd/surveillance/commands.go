package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-health-surveillance/internal/analytics"
	"github.com/mr1hm/go-health-surveillance/internal/ingestion"
	"github.com/mr1hm/go-health-surveillance/internal/models"
	"github.com/mr1hm/go-health-surveillance/internal/syncer"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one pass over the sync queue and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			tr, trCloser := newTransport(cfg)
			defer trCloser.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := syncer.NewSyncer(cfg, db, tr)
			res, err := s.ProcessSyncQueue(ctx)
			if err != nil {
				return err
			}
			pending, err := s.GetPendingSyncCount(ctx)
			if err != nil {
				return err
			}
			failed, err := s.GetFailedSyncCount(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"syncedCount": res.Synced,
				"failedCount": res.Failed,
				"pending":     pending,
				"failedTotal": failed,
				"maxAttempts": s.MaxAttempts(),
				"transport":   cfg.Sync.Transport,
			})
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete records older than the retention window and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := syncer.NewPurger(db, cfg.RetentionWindow(), cfg.Retention.Schedule).PurgeOnce(context.Background())
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"purged": n, "retentionDays": cfg.Retention.Days})
		},
	}
}

func parseSMSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-sms <text>",
		Short: "Parse an SMS health report and print it without storing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := ingestion.ParseSMS(args[0])
			if err != nil {
				return err
			}
			return printJSON(in)
		},
	}
}

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Print the outbreak risk assessment for a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			district, _ := cmd.Flags().GetString("district")
			village, _ := cmd.Flags().GetString("village")
			state, _ := cmd.Flags().GetString("state")
			if district == "" {
				return fmt.Errorf("--district is required")
			}

			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			engine, err := newEngine(cfg)
			if err != nil {
				return err
			}
			snap, err := analytics.LoadSnapshot(context.Background(), db, district, analyticsSince(cfg))
			if err != nil {
				return err
			}

			loc := models.Location{District: district, Village: village, State: state}
			return printJSON(engine.GenerateRiskAssessment(loc, snap.Health, snap.Water, snap.Environmental))
		},
	}
	cmd.Flags().String("district", "", "District to assess")
	cmd.Flags().String("village", "", "Village to assess (optional)")
	cmd.Flags().String("state", "", "State, echoed in the result")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
