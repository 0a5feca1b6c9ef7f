package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "files_fetched_total",
		Help:      "Files downloaded per chain.",
	}, []string{"chain"})

	filesSkippedDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "files_skipped_duplicate_total",
		Help:      "Files skipped because their content hash was already archived.",
	}, []string{"chain"})

	rowsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "rows_persisted_total",
		Help:      "Normalized rows written per chain.",
	}, []string{"chain"})

	priceChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "price_changes_total",
		Help:      "Rows whose price signature changed, opening a new period.",
	}, []string{"chain"})

	phaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "phase_errors_total",
		Help:      "Errors per chain and pipeline phase.",
	}, []string{"chain", "phase"})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kosarica",
		Subsystem: "ingest",
		Name:      "runs_finished_total",
		Help:      "Ingestion runs per chain and terminal status.",
	}, []string{"chain", "status"})
)
