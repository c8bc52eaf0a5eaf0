package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_refresh_runs_total",
		Help: "Completed market data refresh runs",
	})
	quotesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_quotes_saved_total",
		Help: "Quotes fetched and persisted",
	})
	quotesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_quotes_failed_total",
		Help: "Quotes that failed to fetch or persist",
	})
	detectionRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_detection_runs_total",
		Help: "Outlier detection runs",
	})
	outliersFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_outliers_flagged_total",
		Help: "Stocks flagged as outliers across all runs",
	})
	detectionWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectorview_detection_write_failures_total",
		Help: "Detection results that could not be persisted",
	})
)
