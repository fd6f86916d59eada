package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/harvester"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Walk keyword listing pages and enqueue detail jobs",
		Long: `Walks the configured seed keywords tier by tier, extracts recipe ids
from the search listing pages, and registers them as crawl jobs through
the backend's enqueue procedure.`,

		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	stopOps := startOpsServer(a)
	defer stopOps()

	cfg := a.Config()
	h := harvester.New(harvester.Config{
		Source:               cfg.Crawler.Source,
		Locale:               cfg.Crawler.Locale,
		MaxPagesPerKeyword:   cfg.Crawler.MaxPagesPerKeyword,
		FetchBatchSize:       cfg.Crawler.FetchBatchSize,
		ZeroNewPageThreshold: cfg.Crawler.ZeroNewPageThreshold,
		KeywordConcurrency:   cfg.Crawler.KeywordConcurrency,
		Politeness:           cfg.Politeness(),
	}, a.Fetcher(), a.Store(), a.Store(), a.Logger().Named("harvester"))

	reports, err := h.Run(cmd.Context(), cfg.SeedTiers())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("harvest: %w", err)
	}

	var pages, inserted, skipped int
	for _, r := range reports {
		pages += r.PagesCrawled
		inserted += r.Inserted
		skipped += r.Skipped
	}
	a.Logger().Info("harvest finished",
		zap.Int("keywords", len(reports)),
		zap.Int("pages", pages),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)
	return nil
}
