// Package backend implements the crawl capabilities over the Supabase
// PostgREST surface: the job queue stored procedures, keyword feedback,
// promotion, and the staging writer.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/supabase"
)

const dateLayout = "2006-01-02"

// Store implements crawl.JobQueue, crawl.FeedbackReader, crawl.Promoter
// and crawl.StagingStore against one Supabase project.
type Store struct {
	client *supabase.Client
	logger *zap.Logger
}

// New builds a Store.
func New(client *supabase.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

var (
	_ crawl.JobQueue       = (*Store)(nil)
	_ crawl.FeedbackReader = (*Store)(nil)
	_ crawl.Promoter       = (*Store)(nil)
	_ crawl.StagingStore   = (*Store)(nil)
)

// ClaimNext leases the next pending job. Some PostgREST setups serialize
// a NULL composite return as an object with all-NULL fields; a claim with
// a zero id is therefore treated as "queue idle" rather than a job.
func (s *Store) ClaimNext(ctx context.Context, workerID string) (*crawl.Job, error) {
	raw, err := s.client.RPC(ctx, "claim_next_crawl_job", map[string]any{"p_worker_id": workerID})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var job crawl.Job
	var rows []crawl.Job
	if err := json.Unmarshal(raw, &rows); err == nil {
		if len(rows) == 0 {
			return nil, nil
		}
		job = rows[0]
	} else if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("claim_next_crawl_job: decode result: %w", err)
	}

	if job.ID == 0 {
		s.logger.Warn("claim returned empty payload", zap.ByteString("payload", raw))
		return nil, nil
	}
	return &job, nil
}

// MarkDone reports a finished job.
func (s *Store) MarkDone(ctx context.Context, jobID int64) error {
	_, err := s.client.RPC(ctx, "mark_crawl_job_done", map[string]any{"p_job_id": jobID})
	return err
}

// MarkFailed reports a retryable failure; the backend decides when to
// re-queue.
func (s *Store) MarkFailed(ctx context.Context, jobID int64, errText string, httpStatus *int) error {
	_, err := s.client.RPC(ctx, "mark_crawl_job_failed", map[string]any{
		"p_job_id":      jobID,
		"p_error":       errText,
		"p_http_status": httpStatus,
	})
	return err
}

// MarkInvalid reports a permanent failure not worth re-queuing.
func (s *Store) MarkInvalid(ctx context.Context, jobID int64, reason string, httpStatus *int) error {
	_, err := s.client.RPC(ctx, "mark_crawl_job_invalid", map[string]any{
		"p_job_id":      jobID,
		"p_reason":      reason,
		"p_http_status": httpStatus,
	})
	return err
}

// Enqueue registers one listing page's ids. The backend deduplicates and
// reports inserted vs. skipped counts.
func (s *Store) Enqueue(ctx context.Context, req crawl.EnqueueRequest) (crawl.EnqueueResult, error) {
	raw, err := s.client.RPC(ctx, "enqueue_crawl_jobs", map[string]any{
		"p_source":     req.Source,
		"p_locale":     req.Locale,
		"p_keyword":    req.Keyword,
		"p_tier":       req.Tier,
		"p_page":       req.Page,
		"p_recipe_ids": req.RecipeIDs,
	})
	if err != nil {
		return crawl.EnqueueResult{}, err
	}
	if raw == nil {
		return crawl.EnqueueResult{}, nil
	}
	var rows []crawl.EnqueueResult
	if err := json.Unmarshal(raw, &rows); err != nil {
		return crawl.EnqueueResult{}, fmt.Errorf("enqueue_crawl_jobs: decode result: %w", err)
	}
	if len(rows) == 0 {
		return crawl.EnqueueResult{}, nil
	}
	return rows[0], nil
}

// KeywordFeedback reads the staleness row for a keyword, nil when none
// has been recorded yet.
func (s *Store) KeywordFeedback(ctx context.Context, keyword string) (*crawl.KeywordFeedback, error) {
	query := "keyword=eq." + url.QueryEscape(keyword) + "&select=is_stale,stale_page"
	raw, err := s.client.SelectOne(ctx, "keyword_feedback", query)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var fb crawl.KeywordFeedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, fmt.Errorf("keyword_feedback: decode row: %w", err)
	}
	fb.Keyword = keyword
	return &fb, nil
}

// UpdateKeywordFeedback records that a recipe discovered via (keyword,
// page) was already older than the cutoff.
func (s *Store) UpdateKeywordFeedback(ctx context.Context, keyword string, page int, published time.Time) error {
	_, err := s.client.RPC(ctx, "update_keyword_feedback", map[string]any{
		"p_keyword":        keyword,
		"p_page":           page,
		"p_date_published": published.UTC().Format(dateLayout),
	})
	return err
}

// PromoteRecipeIfRecent asks the backend to promote a staged recipe; the
// backend decides final eligibility.
func (s *Store) PromoteRecipeIfRecent(ctx context.Context, recipeID int64, cutoff time.Time) error {
	_, err := s.client.RPC(ctx, "promote_recipe_if_recent", map[string]any{
		"p_recipe_id":   recipeID,
		"p_cutoff_date": cutoff.UTC().Format(dateLayout),
	})
	return err
}

// PromoteRecentRecipes promotes staged recipes newer than the cutoff in
// one batch.
func (s *Store) PromoteRecentRecipes(ctx context.Context, cutoff time.Time, limit int) error {
	_, err := s.client.RPC(ctx, "promote_recent_recipes", map[string]any{
		"p_cutoff_date": cutoff.UTC().Format(dateLayout),
		"p_limit":       limit,
	})
	return err
}

// PruneProductOlderThan drops production rows older than the cutoff.
func (s *Store) PruneProductOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := s.client.RPC(ctx, "prune_product_older_than", map[string]any{
		"p_cutoff_date": cutoff.UTC().Format(dateLayout),
	})
	return err
}
