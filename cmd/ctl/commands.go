package main

import (
	"context"
	"fmt"
	"time"

	"github.com/address-discovery/internal/app"
	"github.com/address-discovery/internal/service"
	"github.com/address-discovery/internal/storage"
	"github.com/spf13/cobra"
)

var scanURLCmd = &cobra.Command{
	Use:   "scan-url <url>",
	Short: "ingest a single thread by its URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Service.ScanItem(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var paginateCmd = &cobra.Command{
	Use:   "paginate",
	Short: "walk a subreddit page by page from its stored cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("subreddit")
		target, _ := cmd.Flags().GetInt("target")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(func(ctx context.Context, a *app.App) error {
			if !cmd.Flags().Changed("target") {
				target = a.Config.Ingestion.TargetPerFeed
			}
			if !cmd.Flags().Changed("max-pages") {
				maxPages = a.Config.Ingestion.MaxPages
			}
			res, err := a.Service.RunPages(ctx, channel, target, maxPages, limit)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "recreate missing address aggregates from stored extractions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Service.RebuildAggregates(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "rerun extraction over recent snapshots without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(ctx context.Context, a *app.App) error {
			hits, err := a.Service.RescanSnapshots(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("%d of the last %d snapshots contain candidates\n", len(hits), limit)
			return printJSON(hits)
		})
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "run one in-memory cycle that also injects a synthetic address per text",
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("subreddit")
		seed, _ := cmd.Flags().GetInt64("seed")
		comments, _ := cmd.Flags().GetBool("comments")

		return withApp(func(ctx context.Context, a *app.App) error {
			svc, stores := a.DemoService(seed)
			res, err := svc.RunCycle(ctx, &service.CycleInput{Channel: channel, FetchComments: &comments})
			if err != nil {
				return err
			}
			addrs, err := stores.Addresses.ListConfirmed(ctx, 100)
			if err != nil {
				return err
			}
			fmt.Println("demo results are kept in memory and discarded on exit")
			return printJSON(map[string]interface{}{"result": res, "addresses": addrs})
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print pipeline totals and feed cursors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			st, err := a.Service.Stats(ctx)
			if err != nil {
				return err
			}
			cursors, err := a.Stores.Cursors.ListCursors(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"stats": st, "feeds": cursors})
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "per-coin extraction counts from the ClickHouse event ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetDuration("since")
		return withApp(func(ctx context.Context, a *app.App) error {
			if a.ClickHouse == nil {
				return fmt.Errorf("ClickHouse is not configured (set CLICKHOUSE_HOST)")
			}
			counts, err := storage.NewExtractionEventRepository(a.ClickHouse).CountByCoin(ctx, time.Now().Add(-window))
			if err != nil {
				return err
			}
			return printJSON(counts)
		})
	},
}

func init() {
	paginateCmd.Flags().String("subreddit", "", "subreddit to walk")
	paginateCmd.Flags().Int("target", 200, "stop after this many new posts")
	paginateCmd.Flags().Int("max-pages", 50, "stop after this many page attempts")
	paginateCmd.Flags().Int("limit", 100, "posts per page")
	_ = paginateCmd.MarkFlagRequired("subreddit")

	rescanCmd.Flags().Int("limit", 200, "number of recent snapshots to rescan")

	demoCmd.Flags().String("subreddit", "CryptoCurrency", "subreddit to ingest")
	demoCmd.Flags().Int64("seed", time.Now().UnixNano(), "seed for synthetic addresses")
	demoCmd.Flags().Bool("comments", false, "also fetch comments")

	eventsCmd.Flags().Duration("since", 24*time.Hour, "look-back window")
}
