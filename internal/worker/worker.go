// Package worker implements the detail-job loop: claim a job, fetch the
// recipe page, parse, stage, run the freshness branch, and report exactly
// one terminal state per attempt.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/fetch"
	"github.com/bepdata/recipe-crawler/internal/listing"
	"github.com/bepdata/recipe-crawler/internal/metrics"
	"github.com/bepdata/recipe-crawler/internal/recipe"
	"github.com/bepdata/recipe-crawler/internal/supabase"
)

// reasonValueLimit caps the quoted requested_url inside invalid reasons.
const reasonValueLimit = 200

// PageFetcher performs one GET attempt; the queue's retry scheduling
// makes fetch-level retries unnecessary here.
type PageFetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Config holds the worker knobs.
type Config struct {
	WorkerID    string
	Cutoff      time.Time
	IdleWait    time.Duration
	FailureWait time.Duration
}

// Outcome is the explicit result of one loop iteration.
type Outcome struct {
	Idle   bool
	JobID  int64
	State  crawl.JobState
	Reason string
	Wait   time.Duration
}

// Worker claims and processes detail jobs one at a time.
type Worker struct {
	cfg      Config
	fetcher  PageFetcher
	queue    crawl.JobQueue
	staging  crawl.StagingStore
	promoter crawl.Promoter
	logger   *zap.Logger
}

// New builds a Worker.
func New(cfg Config, fetcher PageFetcher, queue crawl.JobQueue, staging crawl.StagingStore, promoter crawl.Promoter, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 5 * time.Second
	}
	if cfg.FailureWait <= 0 {
		cfg.FailureWait = 1 * time.Second
	}
	return &Worker{
		cfg:      cfg,
		fetcher:  fetcher,
		queue:    queue,
		staging:  staging,
		promoter: promoter,
		logger:   logger.With(zap.String("worker_id", cfg.WorkerID)),
	}
}

// Run loops until the context is canceled. Backend RPC failures on claim
// or terminal report abort the loop; everything else becomes a terminal
// state on the job itself.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := w.Step(ctx)
		if err != nil {
			return err
		}
		crawl.Pause(ctx, outcome.Wait)
	}
}

// Step executes one claim/process/report iteration.
func (w *Worker) Step(ctx context.Context) (Outcome, error) {
	job, err := w.queue.ClaimNext(ctx, w.cfg.WorkerID)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		w.logger.Debug("idle: no job")
		return Outcome{Idle: true, Wait: w.cfg.IdleWait}, nil
	}
	w.logger.Info("claimed job",
		zap.Int64("job_id", job.ID),
		zap.Int64("recipe_id", job.RecipeID),
		zap.String("keyword", job.Keyword),
		zap.Int("page", job.Page),
	)

	res := w.process(ctx, job)
	if err := w.report(ctx, job.ID, res); err != nil {
		return Outcome{}, err
	}
	metrics.ObserveDetailJob(string(res.state))
	return Outcome{JobID: job.ID, State: res.state, Reason: res.reason, Wait: res.wait}, nil
}

type result struct {
	state  crawl.JobState
	reason string
	status *int
	wait   time.Duration
}

func invalid(reason string, status *int) result {
	return result{state: crawl.JobStateInvalid, reason: reason, status: status}
}

func failed(reason string, status *int) result {
	return result{state: crawl.JobStateFailed, reason: reason, status: status}
}

func (w *Worker) process(ctx context.Context, job *crawl.Job) result {
	requestedURL := strings.TrimSpace(job.RequestedURL)
	if requestedURL == "" {
		return invalid(invalidReason("missing_requested_url", job, nil), nil)
	}

	recipeID, ok := listing.RecipeIDFromURL(requestedURL)
	if !ok || recipeID != job.RecipeID {
		var parsed *int64
		if ok {
			parsed = &recipeID
		}
		return invalid(invalidReason("bad_requested_url", job, parsed), nil)
	}

	resp, err := w.fetcher.Get(ctx, requestedURL)
	if err != nil {
		return failed("request_error:"+errorKind(err), nil)
	}
	metrics.ObserveFetch("detail", resp.Duration)
	status := resp.StatusCode

	switch {
	case status == http.StatusMovedPermanently || status == http.StatusFound:
		return invalid("redirect", &status)
	case resp.URL != requestedURL:
		return invalid("url_mismatch", &status)
	case status == http.StatusNotFound || status == http.StatusGone:
		return invalid("notfound", &status)
	case status == http.StatusTooManyRequests || status >= 500:
		res := failed("http_"+strconv.Itoa(status), &status)
		res.wait = w.cfg.FailureWait
		return res
	case status != http.StatusOK:
		return failed("http_"+strconv.Itoa(status), &status)
	}

	parsed := recipe.Parse(resp.Body, requestedURL, recipeID)
	if parsed == nil {
		return invalid("no_recipe_jsonld", &status)
	}

	if err := w.staging.WriteRecipe(ctx, *job, parsed); err != nil {
		metrics.ObserveStagingWriteError()
		return failed("staging_write:"+errorKind(err), &status)
	}

	// Promotion and feedback are best-effort: the staged row is already
	// durable and the batch promote command covers any miss.
	if parsed.DatePublished != nil && dayOf(*parsed.DatePublished).Before(dayOf(w.cfg.Cutoff)) {
		if err := w.promoter.UpdateKeywordFeedback(ctx, job.Keyword, job.Page, *parsed.DatePublished); err != nil {
			w.logger.Warn("keyword feedback update failed", zap.Int64("job_id", job.ID), zap.Error(err))
		}
	} else {
		metrics.ObservePromotion()
		if err := w.promoter.PromoteRecipeIfRecent(ctx, recipeID, w.cfg.Cutoff); err != nil {
			w.logger.Warn("promotion failed", zap.Int64("job_id", job.ID), zap.Error(err))
		}
	}

	return result{state: crawl.JobStateDone}
}

func (w *Worker) report(ctx context.Context, jobID int64, res result) error {
	var err error
	switch res.state {
	case crawl.JobStateDone:
		w.logger.Info("job done", zap.Int64("job_id", jobID))
		err = w.queue.MarkDone(ctx, jobID)
	case crawl.JobStateFailed:
		w.logger.Warn("job failed", zap.Int64("job_id", jobID), zap.String("error", res.reason))
		err = w.queue.MarkFailed(ctx, jobID, res.reason, res.status)
	case crawl.JobStateInvalid:
		w.logger.Warn("job invalid", zap.Int64("job_id", jobID), zap.String("reason", res.reason))
		err = w.queue.MarkInvalid(ctx, jobID, res.reason, res.status)
	}
	if err != nil {
		return fmt.Errorf("report job %d %s: %w", jobID, res.state, err)
	}
	return nil
}

// invalidReason builds the pipe-joined diagnostic recorded on jobs that
// must never be retried.
func invalidReason(code string, job *crawl.Job, parsedRecipeID *int64) string {
	parts := []string{
		code,
		"job_id=" + strconv.FormatInt(job.ID, 10),
		"recipe_id=" + strconv.FormatInt(job.RecipeID, 10),
		"requested_url=" + shortQuote(job.RequestedURL),
	}
	if parsedRecipeID != nil {
		parts = append(parts, "parsed_recipe_id="+strconv.FormatInt(*parsedRecipeID, 10))
	}
	return strings.Join(parts, "|")
}

func shortQuote(s string) string {
	quoted := strconv.Quote(s)
	if len(quoted) > reasonValueLimit {
		return quoted[:reasonValueLimit-3] + "..."
	}
	return quoted
}

// errorKind maps an error to a short stable label for reason strings.
func errorKind(err error) string {
	var apiErr *supabase.APIError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		return "http_" + strconv.Itoa(apiErr.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
