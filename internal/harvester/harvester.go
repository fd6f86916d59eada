// Package harvester walks keyword-search listing pages and turns the
// recipe ids it finds into backend crawl jobs.
package harvester

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/fetch"
	"github.com/bepdata/recipe-crawler/internal/hash"
	"github.com/bepdata/recipe-crawler/internal/listing"
	"github.com/bepdata/recipe-crawler/internal/metrics"
)

// StopReason explains why a keyword's pagination walk ended.
type StopReason string

// Stop reasons, checked in this order per page: a failed fetch, an empty
// listing, a repeated id signature, too many pages without new jobs, and
// finally the page budget.
const (
	StopFetchFailed StopReason = "fetch_failed"
	StopEmptyPage   StopReason = "empty_page"
	StopLoopSig     StopReason = "loop_signature"
	StopNoNewJobs   StopReason = "no_new_jobs"
	StopMaxPages    StopReason = "reached_max_pages"
)

// PageFetcher fetches one listing page under the retry policy.
type PageFetcher interface {
	GetRetry(ctx context.Context, url string) (*fetch.Response, error)
}

// Config holds the harvest knobs.
type Config struct {
	Source               string
	Locale               string
	MaxPagesPerKeyword   int
	StalePageBudget      int
	FetchBatchSize       int
	ZeroNewPageThreshold int
	KeywordConcurrency   int
	Politeness           time.Duration
}

// KeywordReport summarizes one keyword's walk.
type KeywordReport struct {
	Keyword      string
	Tier         int
	PagesCrawled int
	Inserted     int
	Skipped      int
	StopReason   StopReason
}

// Harvester runs the discovery crawl over seed keyword tiers.
type Harvester struct {
	cfg      Config
	fetcher  PageFetcher
	queue    crawl.JobQueue
	feedback crawl.FeedbackReader
	logger   *zap.Logger
}

// New builds a Harvester.
func New(cfg Config, fetcher PageFetcher, queue crawl.JobQueue, feedback crawl.FeedbackReader, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPagesPerKeyword <= 0 {
		cfg.MaxPagesPerKeyword = 30
	}
	if cfg.StalePageBudget <= 0 {
		cfg.StalePageBudget = 2
	}
	if cfg.FetchBatchSize <= 0 {
		cfg.FetchBatchSize = 1
	}
	if cfg.ZeroNewPageThreshold <= 0 {
		cfg.ZeroNewPageThreshold = 5
	}
	if cfg.KeywordConcurrency <= 0 {
		cfg.KeywordConcurrency = 1
	}
	return &Harvester{cfg: cfg, fetcher: fetcher, queue: queue, feedback: feedback, logger: logger}
}

// Run harvests every seed tier in order, keywords within a tier bounded
// by the configured concurrency. A backend enqueue failure aborts the
// whole run; per-keyword fetch trouble only stops that keyword.
func (h *Harvester) Run(ctx context.Context, tiers []crawl.SeedTier) ([]KeywordReport, error) {
	var reports []KeywordReport
	for _, tier := range tiers {
		tierReports := make([]KeywordReport, len(tier.Keywords))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(h.cfg.KeywordConcurrency)
		for i, keyword := range tier.Keywords {
			g.Go(func() error {
				report, err := h.HarvestKeyword(gctx, keyword, tier.Tier)
				if err != nil {
					return err
				}
				tierReports[i] = report
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return reports, err
		}
		reports = append(reports, tierReports...)
	}
	return reports, nil
}

// HarvestKeyword walks one keyword's listing pages until a stop condition
// or the page budget.
func (h *Harvester) HarvestKeyword(ctx context.Context, keyword string, tier int) (KeywordReport, error) {
	report := KeywordReport{Keyword: keyword, Tier: tier}
	budget := h.pageBudget(ctx, keyword)
	logger := h.logger.With(zap.String("keyword", keyword), zap.Int("tier", tier))
	logger.Info("harvesting keyword", zap.Int("page_budget", budget))

	var (
		prevSignature string
		zeroNewPages  int
	)

walk:
	for next := 1; next <= budget; {
		last := min(next+h.cfg.FetchBatchSize-1, budget)
		batch := h.fetchBatch(ctx, keyword, next, last)

		for _, page := range batch {
			if page.err != nil || page.resp.StatusCode != http.StatusOK {
				status := 0
				if page.resp != nil {
					status = page.resp.StatusCode
					metrics.ObserveListingPage(status)
				}
				logger.Warn("listing fetch failed",
					zap.Int("page", page.page),
					zap.Int("status", status),
					zap.Error(page.err),
				)
				report.StopReason = StopFetchFailed
				break walk
			}
			metrics.ObserveListingPage(page.resp.StatusCode)
			metrics.ObserveFetch("listing", page.resp.Duration)

			ids, err := listing.ExtractRecipeIDs(page.resp.Body)
			if err != nil {
				logger.Warn("listing parse failed", zap.Int("page", page.page), zap.Error(err))
				report.StopReason = StopFetchFailed
				break walk
			}
			report.PagesCrawled++

			if len(ids) == 0 {
				report.StopReason = StopEmptyPage
				break walk
			}
			signature := hash.SignatureOfIDs(ids)
			if signature == prevSignature {
				report.StopReason = StopLoopSig
				break walk
			}
			prevSignature = signature

			result, err := h.queue.Enqueue(ctx, crawl.EnqueueRequest{
				Source:    h.cfg.Source,
				Locale:    h.cfg.Locale,
				Keyword:   keyword,
				Tier:      tier,
				Page:      page.page,
				RecipeIDs: ids,
			})
			if err != nil {
				return report, fmt.Errorf("enqueue keyword %q page %d: %w", keyword, page.page, err)
			}
			report.Inserted += result.Inserted
			report.Skipped += result.Skipped
			metrics.ObserveEnqueued(result.Inserted, result.Skipped)
			logger.Debug("page enqueued",
				zap.Int("page", page.page),
				zap.Int("ids", len(ids)),
				zap.Int("inserted", result.Inserted),
				zap.Int("skipped", result.Skipped),
			)

			if result.Inserted > 0 {
				zeroNewPages = 0
			} else {
				zeroNewPages++
				if zeroNewPages >= h.cfg.ZeroNewPageThreshold {
					report.StopReason = StopNoNewJobs
					break walk
				}
			}
		}

		next = last + 1
		if next <= budget {
			crawl.Pause(ctx, h.cfg.Politeness)
		}
	}

	if report.StopReason == "" {
		report.StopReason = StopMaxPages
	}
	metrics.ObserveKeywordDone(string(report.StopReason))
	logger.Info("keyword finished",
		zap.Int("pages", report.PagesCrawled),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.String("stop_reason", string(report.StopReason)),
	)
	return report, nil
}

// pageBudget shrinks the walk for keywords earlier runs found stale. A
// feedback read failure falls back to the full budget.
func (h *Harvester) pageBudget(ctx context.Context, keyword string) int {
	fb, err := h.feedback.KeywordFeedback(ctx, keyword)
	if err != nil {
		h.logger.Warn("keyword feedback unavailable", zap.String("keyword", keyword), zap.Error(err))
		return h.cfg.MaxPagesPerKeyword
	}
	if fb != nil && fb.IsStale {
		return min(h.cfg.StalePageBudget, h.cfg.MaxPagesPerKeyword)
	}
	return h.cfg.MaxPagesPerKeyword
}

type fetchedPage struct {
	page int
	resp *fetch.Response
	err  error
}

// fetchBatch fetches pages first..last concurrently. Results come back
// in ascending page order; the caller applies stop conditions in that
// order so a batch behaves exactly like sequential fetching.
func (h *Harvester) fetchBatch(ctx context.Context, keyword string, first, last int) []fetchedPage {
	batch := make([]fetchedPage, last-first+1)
	g, gctx := errgroup.WithContext(ctx)
	for i := range batch {
		page := first + i
		g.Go(func() error {
			resp, err := h.fetcher.GetRetry(gctx, listing.SearchURL(keyword, page))
			batch[i] = fetchedPage{page: page, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return batch
}
