// Package cmd defines the CLI commands for the recipe-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/api"
	"github.com/bepdata/recipe-crawler/internal/app"
	"github.com/bepdata/recipe-crawler/internal/config"
	"github.com/bepdata/recipe-crawler/internal/logging"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory, replaceable in tests.
var newApp = func() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe-crawler",
		Short: "Cookpad VN recipe crawl pipeline",
		Long: `recipe-crawler discovers recipes on Cookpad VN via keyword search,
queues per-recipe fetch jobs in a Supabase backend, and processes them
into staging tables ready for promotion.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; environment is always read)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newPromoteCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// startOpsServer runs the health/metrics server when configured and
// returns a shutdown func.
func startOpsServer(a *app.App) func() {
	addr := a.Config().Metrics.Addr
	if addr == "" {
		return func() {}
	}
	srv := api.NewServer(addr, a.Logger().Named("api"))
	srv.Start()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.Logger().Warn("ops server shutdown failed", zap.Error(err))
		}
	}
}

// Execute is the entry point; it wires SIGINT/SIGTERM into the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.L.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
