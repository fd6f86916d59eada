package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserversAreNoOpsBeforeInit(t *testing.T) {
	listingPagesTotal = nil
	jobsEnqueuedTotal = nil
	detailJobsTotal = nil
	fetchDurationSeconds = nil
	fetchRetriesTotal = nil
	keywordsHarvestedTotal = nil
	recipesPromotedTotal = nil
	stagingWriteErrorsTotal = nil

	ObserveListingPage(200)
	ObserveEnqueued(3, 1)
	ObserveDetailJob("done")
	ObserveFetch("detail", 50*time.Millisecond)
	ObserveFetchRetry()
	ObserveKeywordDone("empty_page")
	ObservePromotion()
	ObserveStagingWriteError()
}

func TestInitAndObserve(t *testing.T) {
	Init()

	ObserveListingPage(200)
	ObserveListingPage(200)
	ObserveListingPage(503)
	if got := testutil.ToFloat64(listingPagesTotal.WithLabelValues("200")); got != 2 {
		t.Errorf("listing pages 200 = %v; want 2", got)
	}
	if got := testutil.ToFloat64(listingPagesTotal.WithLabelValues("503")); got != 1 {
		t.Errorf("listing pages 503 = %v; want 1", got)
	}

	ObserveEnqueued(5, 2)
	if got := testutil.ToFloat64(jobsEnqueuedTotal.WithLabelValues("inserted")); got != 5 {
		t.Errorf("enqueued inserted = %v; want 5", got)
	}
	if got := testutil.ToFloat64(jobsEnqueuedTotal.WithLabelValues("skipped")); got != 2 {
		t.Errorf("enqueued skipped = %v; want 2", got)
	}

	ObserveDetailJob("done")
	ObserveDetailJob("invalid")
	if got := testutil.ToFloat64(detailJobsTotal.WithLabelValues("done")); got != 1 {
		t.Errorf("jobs done = %v; want 1", got)
	}

	ObserveFetchRetry()
	if got := testutil.ToFloat64(fetchRetriesTotal); got != 1 {
		t.Errorf("fetch retries = %v; want 1", got)
	}

	ObserveKeywordDone("reached_max_pages")
	if got := testutil.ToFloat64(keywordsHarvestedTotal.WithLabelValues("reached_max_pages")); got != 1 {
		t.Errorf("keywords done = %v; want 1", got)
	}

	// Init is idempotent; collectors keep their counts.
	Init()
	if got := testutil.ToFloat64(listingPagesTotal.WithLabelValues("200")); got != 2 {
		t.Errorf("listing pages 200 after re-init = %v; want 2", got)
	}
}
