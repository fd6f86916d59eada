package crawl

import (
	"context"
	"time"

	"github.com/bepdata/recipe-crawler/internal/recipe"
)

// JobQueue is the backend-held crawl job queue. Claim atomicity,
// deduplication on enqueue, and retry scheduling of failed jobs are all
// the backend's responsibility; the core never verifies them.
type JobQueue interface {
	// ClaimNext leases the next pending job for the worker, or returns
	// nil when the queue is idle.
	ClaimNext(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkFailed(ctx context.Context, jobID int64, errText string, httpStatus *int) error
	MarkInvalid(ctx context.Context, jobID int64, reason string, httpStatus *int) error
	// Enqueue registers discovered ids for one (keyword, tier, page).
	Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error)
}

// FeedbackReader exposes keyword staleness recorded by earlier runs.
type FeedbackReader interface {
	KeywordFeedback(ctx context.Context, keyword string) (*KeywordFeedback, error)
}

// Promoter covers the freshness branch after a successful parse: either
// the recipe is recent enough to promote, or its age is reported back as
// keyword feedback.
type Promoter interface {
	UpdateKeywordFeedback(ctx context.Context, keyword string, page int, published time.Time) error
	PromoteRecipeIfRecent(ctx context.Context, recipeID int64, cutoff time.Time) error
}

// StagingStore persists one parsed recipe, fully replacing the child
// collections for its recipe id.
type StagingStore interface {
	WriteRecipe(ctx context.Context, job Job, r *recipe.Recipe) error
}

// Pause sleeps for the given duration or until the context finishes.
func Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
