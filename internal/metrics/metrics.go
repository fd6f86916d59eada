// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingPagesTotal       *prometheus.CounterVec
	jobsEnqueuedTotal       *prometheus.CounterVec
	detailJobsTotal         *prometheus.CounterVec
	fetchDurationSeconds    *prometheus.HistogramVec
	fetchRetriesTotal       prometheus.Counter
	keywordsHarvestedTotal  *prometheus.CounterVec
	recipesPromotedTotal    prometheus.Counter
	stagingWriteErrorsTotal prometheus.Counter

	once sync.Once
)

// Init registers the collectors. Safe to call more than once; every
// observe function below is a no-op until Init runs, so tests never need
// the registry.
func Init() {
	once.Do(func() {
		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_listing_pages_total",
				Help: "Listing pages fetched, labeled by HTTP status.",
			},
			[]string{"status"},
		)

		jobsEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_jobs_enqueued_total",
				Help: "Detail jobs registered with the backend, labeled by dedup outcome.",
			},
			[]string{"outcome"},
		)

		detailJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_detail_jobs_total",
				Help: "Detail jobs finished by the worker, labeled by terminal state.",
			},
			[]string{"state"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fetch_retries_total",
				Help: "Fetch attempts beyond the first.",
			},
		)

		keywordsHarvestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_keywords_total",
				Help: "Keywords completed by the harvester, labeled by stop reason.",
			},
			[]string{"stop_reason"},
		)

		recipesPromotedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "worker_recipes_promoted_total",
				Help: "Recipes handed to the promotion procedure after a fresh parse.",
			},
		)

		stagingWriteErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "worker_staging_write_errors_total",
				Help: "Failed staging writes.",
			},
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListingPage counts one fetched listing page.
func ObserveListingPage(status int) {
	if listingPagesTotal == nil {
		return
	}
	listingPagesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveEnqueued counts backend enqueue outcomes for one listing page.
func ObserveEnqueued(inserted, skipped int) {
	if jobsEnqueuedTotal == nil {
		return
	}
	jobsEnqueuedTotal.WithLabelValues("inserted").Add(float64(inserted))
	jobsEnqueuedTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveDetailJob counts one detail job reaching a terminal state.
func ObserveDetailJob(state string) {
	if detailJobsTotal == nil {
		return
	}
	detailJobsTotal.WithLabelValues(state).Inc()
}

// ObserveFetch records one fetch latency; kind is "listing" or "detail".
func ObserveFetch(kind string, duration time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveFetchRetry counts one retried fetch attempt.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveKeywordDone counts one keyword finishing with the given stop
// reason.
func ObserveKeywordDone(stopReason string) {
	if keywordsHarvestedTotal == nil {
		return
	}
	keywordsHarvestedTotal.WithLabelValues(stopReason).Inc()
}

// ObservePromotion counts one promotion attempt.
func ObservePromotion() {
	if recipesPromotedTotal == nil {
		return
	}
	recipesPromotedTotal.Inc()
}

// ObserveStagingWriteError counts one failed staging write.
func ObserveStagingWriteError() {
	if stagingWriteErrorsTotal == nil {
		return
	}
	stagingWriteErrorsTotal.Inc()
}
