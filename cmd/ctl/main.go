// Package main provides the operator CLI for one-off ingestion tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/address-discovery/internal/app"
	"github.com/address-discovery/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var root = &cobra.Command{
	Use:           "ctl",
	Short:         "address discovery operator commands",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logrus.Panicf("failed to using help command, err is %v", err)
		}
	},
}

func init() {
	root.AddCommand(scanURLCmd)
	root.AddCommand(paginateCmd)
	root.AddCommand(backfillCmd)
	root.AddCommand(rescanCmd)
	root.AddCommand(demoCmd)
	root.AddCommand(statsCmd)
	root.AddCommand(eventsCmd)
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, connects and runs fn with a context that is
// cancelled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	app.InitLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
