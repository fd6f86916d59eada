// Package crawl defines the domain types and injected capabilities shared
// by the harvester and the detail worker.
package crawl

// JobState is the lifecycle state of a crawl job, owned by the backend
// queue. Workers only ever observe "claimed" and report terminal states.
type JobState string

// Job states persisted by the backend.
const (
	JobStatePending JobState = "pending"
	JobStateClaimed JobState = "claimed"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
	JobStateInvalid JobState = "invalid"
)

// Job is one per-recipe fetch job. Workers hold a transient lease on it
// between claim and terminal report; the backend enforces that at most
// one worker holds a job at a time.
type Job struct {
	ID           int64    `json:"id"`
	Source       string   `json:"source"`
	Locale       string   `json:"locale"`
	Keyword      string   `json:"keyword"`
	Tier         int      `json:"tier"`
	Page         int      `json:"page"`
	RecipeID     int64    `json:"recipe_id"`
	RequestedURL string   `json:"requested_url"`
	State        JobState `json:"state"`
}

// EnqueueRequest carries one listing page's worth of discovered ids.
type EnqueueRequest struct {
	Source    string
	Locale    string
	Keyword   string
	Tier      int
	Page      int
	RecipeIDs []int64
}

// EnqueueResult reports how many jobs the backend actually created;
// deduplication against already-known jobs happens server-side.
type EnqueueResult struct {
	Inserted int `json:"inserted_count"`
	Skipped  int `json:"skipped_count"`
}

// KeywordFeedback signals that a keyword was previously found
// unproductive, shrinking the harvester's page budget for it.
type KeywordFeedback struct {
	Keyword   string `json:"keyword"`
	IsStale   bool   `json:"is_stale"`
	StalePage int    `json:"stale_page"`
}

// SeedTier is a priority grouping of seed keywords. Tier 1 is crawled
// before tier 2; within a tier the seed order is preserved.
type SeedTier struct {
	Tier     int
	Keywords []string
}
