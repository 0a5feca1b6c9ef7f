package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/persist"
	"github.com/damir5/kosarica-sub000/internal/storage"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// Summary is the user-facing outcome of one ingestion run.
type Summary struct {
	RunID            string            `json:"runId"`
	ChainSlug        string            `json:"chainSlug"`
	Discovered       int               `json:"discovered"`
	Fetched          int               `json:"fetched"`
	SkippedDuplicate int               `json:"skippedDuplicate"`
	Expanded         int               `json:"expanded"`
	Parsed           int               `json:"parsed"`
	TotalRows        int               `json:"totalRows"`
	ValidRows        int               `json:"validRows"`
	Persisted        int               `json:"persisted"`
	PriceChanges     int               `json:"priceChanges"`
	Unchanged        int               `json:"unchanged"`
	Failed           int               `json:"failed"`
	Errors           []string          `json:"errors,omitempty"`
	StoresNotFound   []UnresolvedStore `json:"storesNotFound,omitempty"`
}

// Success reports whether the run finished without errors.
func (s *Summary) Success() bool {
	return len(s.Errors) == 0
}

// Pipeline drives the five ingestion phases over one chain. The same
// instance backs both the single-process CLI flow and the queue workers.
type Pipeline struct {
	pool      *pgxpool.Pool
	store     storage.Storage
	storeType storage.StorageType
	engine    *persist.Engine
}

func New(pool *pgxpool.Pool, store storage.Storage, storeType storage.StorageType) *Pipeline {
	return &Pipeline{
		pool:      pool,
		store:     store,
		storeType: storeType,
		engine:    persist.NewEngine(pool),
	}
}

// Engine exposes the persistence engine for queue handlers that persist
// chunks outside a full run.
func (p *Pipeline) Engine() *persist.Engine {
	return p.engine
}

// Pool exposes the database pool for run bookkeeping by queue handlers.
func (p *Pipeline) Pool() *pgxpool.Pool {
	return p.pool
}

// Run executes discover, fetch, expand, parse and persist for one chain,
// sequentially. Per-file errors are collected; only setup failures abort the
// whole run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if !config.IsValidChainID(opts.ChainSlug) {
		return nil, fmt.Errorf("unknown chain %q", opts.ChainSlug)
	}
	adapter, err := registry.GetAdapter(config.ChainID(opts.ChainSlug))
	if err != nil {
		return nil, fmt.Errorf("adapter for %s: %w", opts.ChainSlug, err)
	}

	runID, err := CreateRun(ctx, p.pool, opts)
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunID: runID, ChainSlug: opts.ChainSlug}

	log.Info().
		Str("chain", opts.ChainSlug).
		Str("run_id", runID).
		Str("target_date", opts.TargetDate).
		Msg("starting ingestion run")

	files, err := p.Discover(adapter, opts.TargetDate, opts.StoreFilter)
	if err != nil {
		phaseErrors.WithLabelValues(opts.ChainSlug, "discover").Inc()
		_ = MarkRunFailed(ctx, p.pool, runID, err.Error())
		runsFinished.WithLabelValues(opts.ChainSlug, "failed").Inc()
		summary.Errors = append(summary.Errors, err.Error())
		return summary, nil
	}
	summary.Discovered = len(files)

	if err := RecordTotalFiles(ctx, p.pool, runID, len(files)); err != nil {
		return summary, err
	}
	if len(files) == 0 {
		if err := MarkRunCompleted(ctx, p.pool, runID); err != nil {
			return summary, err
		}
		runsFinished.WithLabelValues(opts.ChainSlug, "completed").Inc()
		log.Info().Str("chain", opts.ChainSlug).Str("run_id", runID).Msg("no files published, run complete")
		return summary, nil
	}

	for _, file := range files {
		p.processFile(ctx, adapter, runID, file, summary)

		if err := IncrementProcessedFiles(ctx, p.pool, runID); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("failed to advance processed file counter")
		}
		if _, err := CheckRunCompletion(ctx, p.pool, runID); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("run completion check failed")
		}
	}

	_ = AddErrorCount(ctx, p.pool, runID, len(summary.Errors))

	status := "completed"
	if run, err := GetRun(ctx, p.pool, runID); err == nil {
		status = run.Status
	}
	runsFinished.WithLabelValues(opts.ChainSlug, status).Inc()

	log.Info().
		Str("chain", opts.ChainSlug).
		Str("run_id", runID).
		Str("status", status).
		Int("files", summary.Discovered).
		Int("persisted", summary.Persisted).
		Int("price_changes", summary.PriceChanges).
		Int("errors", len(summary.Errors)).
		Msg("ingestion run finished")

	return summary, nil
}

// processFile runs one discovered file through fetch, expand, parse and
// persist, updating the run record and summary as it goes.
func (p *Pipeline) processFile(ctx context.Context, adapter registry.ChainAdapter, runID string, file types.DiscoveredFile, summary *Summary) {
	chainSlug := adapter.Slug()

	fetchResult, err := p.Fetch(ctx, adapter, file)
	if err != nil {
		phaseErrors.WithLabelValues(chainSlug, "fetch").Inc()
		summary.Errors = append(summary.Errors, err.Error())
		if fileID, ferr := CreateIngestionFile(ctx, p.pool, runID, file, 0, "", "", "failed",
			map[string]interface{}{"error": err.Error()}); ferr == nil {
			RecordRunError(ctx, p.pool, runID, &fileID, "fetch", "http", err.Error(), "error")
		}
		return
	}
	summary.Fetched++
	filesFetched.WithLabelValues(chainSlug).Inc()

	if fetchResult.Duplicate {
		summary.SkippedDuplicate++
		filesSkippedDuplicate.WithLabelValues(chainSlug).Inc()
		_, _ = CreateIngestionFile(ctx, p.pool, runID, file, 0, fetchResult.Hash, "", "completed",
			map[string]interface{}{"duplicate": true, "archiveId": fetchResult.ArchiveID})
		return
	}

	fileID, err := CreateIngestionFile(ctx, p.pool, runID, file, len(fetchResult.Content),
		fetchResult.Hash, fetchResult.StorageKey, "processing",
		map[string]interface{}{"url": file.URL, "archiveId": fetchResult.ArchiveID})
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return
	}

	entries, err := p.Expand(ctx, chainSlug, file, fetchResult)
	if err != nil {
		phaseErrors.WithLabelValues(chainSlug, "expand").Inc()
		summary.Errors = append(summary.Errors, err.Error())
		RecordRunError(ctx, p.pool, runID, &fileID, "expand", "zip", err.Error(), "error")
		_ = MarkFileFailed(ctx, p.pool, fileID)
		return
	}
	summary.Expanded += len(entries)
	_ = SetFileEntryCount(ctx, p.pool, fileID, len(entries))
	_ = AddTotalEntries(ctx, p.pool, runID, len(entries))

	fileFailed := false
	for _, entry := range entries {
		parsed, err := p.ParseEntry(adapter, entry)
		if err != nil {
			phaseErrors.WithLabelValues(chainSlug, "parse").Inc()
			summary.Errors = append(summary.Errors, err.Error())
			RecordRunError(ctx, p.pool, runID, &fileID, "parse", "format", err.Error(), "error")
			fileFailed = true
			continue
		}
		summary.Parsed++
		summary.TotalRows += parsed.TotalRows
		summary.ValidRows += parsed.ValidRows
		summary.Errors = append(summary.Errors, parsed.Errors...)
		for _, msg := range parsed.Errors {
			RecordRunError(ctx, p.pool, runID, &fileID, "parse", "row", msg, "warning")
		}

		if parsed.ValidRows == 0 {
			_ = AddProcessedEntries(ctx, p.pool, runID, 1)
			continue
		}

		counters := p.PersistEntry(ctx, adapter, entry, parsed)
		summary.Persisted += counters.Persisted
		summary.PriceChanges += counters.PriceChanges
		summary.Unchanged += counters.Unchanged
		summary.Failed += counters.Failed
		summary.Errors = append(summary.Errors, counters.Errors...)
		summary.StoresNotFound = append(summary.StoresNotFound, counters.StoresNotFound...)
		for _, msg := range counters.Errors {
			phaseErrors.WithLabelValues(chainSlug, "persist").Inc()
			RecordRunError(ctx, p.pool, runID, &fileID, "persist", "database", msg, "error")
		}
		_ = AddProcessedEntries(ctx, p.pool, runID, 1)
	}

	if fileFailed {
		_ = MarkFileFailed(ctx, p.pool, fileID)
	} else {
		_ = MarkFileCompleted(ctx, p.pool, fileID)
	}
}
