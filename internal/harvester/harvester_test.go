package harvester

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bepdata/recipe-crawler/internal/crawl"
	"github.com/bepdata/recipe-crawler/internal/fetch"
	"github.com/bepdata/recipe-crawler/internal/listing"
)

func listingHTML(ids ...int64) *fetch.Response {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<a href="/vn/cong-thuc/%d">recipe</a>`, id)
	}
	b.WriteString("</body></html>")
	return &fetch.Response{StatusCode: http.StatusOK, Body: []byte(b.String())}
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*fetch.Response
	requested []string
}

func (f *fakeFetcher) GetRetry(_ context.Context, url string) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, url)
	resp, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", url)
	}
	return resp, nil
}

func (f *fakeFetcher) set(keyword string, page int, resp *fetch.Response) {
	if f.responses == nil {
		f.responses = map[string]*fetch.Response{}
	}
	f.responses[listing.SearchURL(keyword, page)] = resp
}

func (f *fakeFetcher) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

type fakeQueue struct {
	crawl.JobQueue

	mu       sync.Mutex
	enqueued []crawl.EnqueueRequest
	inserted func(req crawl.EnqueueRequest) int
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, req crawl.EnqueueRequest) (crawl.EnqueueResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return crawl.EnqueueResult{}, q.err
	}
	q.enqueued = append(q.enqueued, req)
	inserted := len(req.RecipeIDs)
	if q.inserted != nil {
		inserted = q.inserted(req)
	}
	return crawl.EnqueueResult{Inserted: inserted, Skipped: len(req.RecipeIDs) - inserted}, nil
}

func (q *fakeQueue) requests() []crawl.EnqueueRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]crawl.EnqueueRequest(nil), q.enqueued...)
}

type fakeFeedback struct {
	stale map[string]bool
	err   error
}

func (f *fakeFeedback) KeywordFeedback(_ context.Context, keyword string) (*crawl.KeywordFeedback, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.stale[keyword] {
		return &crawl.KeywordFeedback{Keyword: keyword, IsStale: true, StalePage: 2}, nil
	}
	return nil, nil
}

func newHarvester(cfg Config, fetcher PageFetcher, queue crawl.JobQueue, feedback crawl.FeedbackReader) *Harvester {
	cfg.Source = "cookpad"
	cfg.Locale = "vn"
	return New(cfg, fetcher, queue, feedback, nil)
}

func TestHarvestKeyword_StopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	fetcher.set("gà", 1, listingHTML(1, 2, 3))
	fetcher.set("gà", 2, listingHTML())
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 10, FetchBatchSize: 1}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopEmptyPage, report.StopReason)
	require.Equal(t, 3, report.Inserted)

	reqs := queue.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, []int64{1, 2, 3}, reqs[0].RecipeIDs)
	require.Equal(t, 1, reqs[0].Page)
	require.Equal(t, "cookpad", reqs[0].Source)
}

func TestHarvestKeyword_StopsOnRepeatedSignature(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	fetcher.set("gà", 1, listingHTML(1, 2))
	fetcher.set("gà", 2, listingHTML(1, 2))
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 10, FetchBatchSize: 1}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopLoopSig, report.StopReason)
	require.Len(t, queue.requests(), 1)
}

func TestHarvestKeyword_StopsAfterZeroNewThreshold(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	for page := 1; page <= 10; page++ {
		fetcher.set("gà", page, listingHTML(int64(page*10), int64(page*10+1)))
	}
	queue := &fakeQueue{inserted: func(crawl.EnqueueRequest) int { return 0 }}

	h := newHarvester(Config{MaxPagesPerKeyword: 10, FetchBatchSize: 1, ZeroNewPageThreshold: 2}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopNoNewJobs, report.StopReason)
	require.Len(t, queue.requests(), 2)
	require.Equal(t, 0, report.Inserted)
	require.Equal(t, 4, report.Skipped)
}

func TestHarvestKeyword_InsertResetsZeroNewCounter(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	for page := 1; page <= 4; page++ {
		fetcher.set("gà", page, listingHTML(int64(page)))
	}
	// Pages 1 and 3 insert, pages 2 and 4 are all-duplicates.
	queue := &fakeQueue{inserted: func(req crawl.EnqueueRequest) int {
		if req.Page%2 == 1 {
			return len(req.RecipeIDs)
		}
		return 0
	}}

	h := newHarvester(Config{MaxPagesPerKeyword: 4, FetchBatchSize: 1, ZeroNewPageThreshold: 2}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopMaxPages, report.StopReason)
	require.Len(t, queue.requests(), 4)
}

func TestHarvestKeyword_StopsOnFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	fetcher.set("gà", 1, listingHTML(1))
	fetcher.set("gà", 2, &fetch.Response{StatusCode: http.StatusInternalServerError})
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 10, FetchBatchSize: 1}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopFetchFailed, report.StopReason)
	require.Len(t, queue.requests(), 1)
}

func TestHarvestKeyword_StaleKeywordShrinksBudget(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	for page := 1; page <= 5; page++ {
		fetcher.set("gà", page, listingHTML(int64(page)))
	}
	queue := &fakeQueue{}
	feedback := &fakeFeedback{stale: map[string]bool{"gà": true}}

	h := newHarvester(Config{MaxPagesPerKeyword: 5, StalePageBudget: 2, FetchBatchSize: 1}, fetcher, queue, feedback)
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopMaxPages, report.StopReason)
	require.Equal(t, 2, report.PagesCrawled)
	require.Len(t, fetcher.requests(), 2)
}

func TestHarvestKeyword_FeedbackErrorUsesFullBudget(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	for page := 1; page <= 3; page++ {
		fetcher.set("gà", page, listingHTML(int64(page)))
	}
	queue := &fakeQueue{}
	feedback := &fakeFeedback{err: fmt.Errorf("backend down")}

	h := newHarvester(Config{MaxPagesPerKeyword: 3, FetchBatchSize: 1}, fetcher, queue, feedback)
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, 3, report.PagesCrawled)
}

func TestHarvestKeyword_EnqueueErrorAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	fetcher.set("gà", 1, listingHTML(1))
	queue := &fakeQueue{err: fmt.Errorf("rpc enqueue_crawl_jobs failed: 500")}

	h := newHarvester(Config{MaxPagesPerKeyword: 3, FetchBatchSize: 1}, fetcher, queue, &fakeFeedback{})
	_, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "enqueue")
}

func TestHarvestKeyword_BatchAppliedInPageOrder(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	for page := 1; page <= 6; page++ {
		fetcher.set("gà", page, listingHTML(int64(page*100), int64(page*100+1)))
	}
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 6, FetchBatchSize: 3}, fetcher, queue, &fakeFeedback{})
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopMaxPages, report.StopReason)

	reqs := queue.requests()
	require.Len(t, reqs, 6)
	for i, req := range reqs {
		require.Equal(t, i+1, req.Page)
	}
}

func TestRun_TierOrderAndSeedOrder(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	keywords := []string{"gà", "bò", "cá"}
	for i, kw := range keywords {
		fetcher.set(kw, 1, listingHTML(int64(i+1)))
		fetcher.set(kw, 2, listingHTML())
	}
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 5, FetchBatchSize: 1, KeywordConcurrency: 1}, fetcher, queue, &fakeFeedback{})
	reports, err := h.Run(context.Background(), []crawl.SeedTier{
		{Tier: 1, Keywords: []string{"gà", "bò"}},
		{Tier: 2, Keywords: []string{"cá"}},
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Equal(t, "gà", reports[0].Keyword)
	require.Equal(t, 1, reports[0].Tier)
	require.Equal(t, "bò", reports[1].Keyword)
	require.Equal(t, "cá", reports[2].Keyword)
	require.Equal(t, 2, reports[2].Tier)

	reqs := queue.requests()
	require.Len(t, reqs, 3)
	require.Equal(t, "gà", reqs[0].Keyword)
	require.Equal(t, "bò", reqs[1].Keyword)
	require.Equal(t, "cá", reqs[2].Keyword)
}

func TestRun_ConcurrentKeywordsSameOutcomes(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	keywords := []string{"gà", "bò", "cá", "tôm"}
	for i, kw := range keywords {
		fetcher.set(kw, 1, listingHTML(int64(10*i+1), int64(10*i+2)))
		fetcher.set(kw, 2, listingHTML())
	}
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 5, FetchBatchSize: 1, KeywordConcurrency: 4}, fetcher, queue, &fakeFeedback{})
	reports, err := h.Run(context.Background(), []crawl.SeedTier{{Tier: 1, Keywords: keywords}})
	require.NoError(t, err)
	require.Len(t, reports, 4)

	byKeyword := map[string]KeywordReport{}
	for _, r := range reports {
		byKeyword[r.Keyword] = r
	}
	for _, kw := range keywords {
		require.Equal(t, StopEmptyPage, byKeyword[kw].StopReason, kw)
		require.Equal(t, 2, byKeyword[kw].Inserted, kw)
	}
}

func TestHarvestKeyword_PolitenessDoesNotStall(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	fetcher.set("gà", 1, listingHTML(1))
	fetcher.set("gà", 2, listingHTML())
	queue := &fakeQueue{}

	h := newHarvester(Config{MaxPagesPerKeyword: 2, FetchBatchSize: 1, Politeness: time.Millisecond}, fetcher, queue, &fakeFeedback{})
	start := time.Now()
	report, err := h.HarvestKeyword(context.Background(), "gà", 1)
	require.NoError(t, err)
	require.Equal(t, StopEmptyPage, report.StopReason)
	require.Less(t, time.Since(start), time.Second)
}
