package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
)

// RunOptions describes the run record to create.
type RunOptions struct {
	ChainSlug  string
	TargetDate string // YYYY-MM-DD; empty means today
	Source     string // 'cli', 'worker', 'scheduled'
	// StoreFilter restricts discovery to files resolving to this store
	// identifier. Not recorded on the run row.
	StoreFilter string

	// Rerun lineage, set only for rerun-created runs.
	ParentRunID   string
	RerunType     string // 'run', 'file', 'chunk'
	RerunTargetID string
}

// CreateRun inserts a new ingestion_runs row in 'running' state.
func CreateRun(ctx context.Context, pool *pgxpool.Pool, opts RunOptions) (string, error) {
	runID := cuid2.GeneratePrefixedId("run", cuid2.PrefixedIdOptions{})
	source := opts.Source
	if source == "" {
		source = "cli"
	}

	var parentRunID, rerunType, rerunTargetID *string
	if opts.ParentRunID != "" {
		parentRunID = &opts.ParentRunID
		rerunType = &opts.RerunType
		rerunTargetID = &opts.RerunTargetID
	}

	var targetDate *string
	if opts.TargetDate != "" {
		targetDate = &opts.TargetDate
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_runs (
			id, chain_slug, target_date, source, status, started_at,
			total_files, processed_files, total_entries, processed_entries, error_count,
			parent_run_id, rerun_type, rerun_target_id, created_at
		) VALUES ($1, $2, $3, $4, 'running', $5, 0, 0, 0, 0, 0, $6, $7, $8, $5)
	`, runID, opts.ChainSlug, targetDate, source, time.Now(), parentRunID, rerunType, rerunTargetID)
	if err != nil {
		return "", fmt.Errorf("create ingestion run: %w", err)
	}
	return runID, nil
}

// GetRun loads a run record by id.
func GetRun(ctx context.Context, pool *pgxpool.Pool, runID string) (*database.IngestionRun, error) {
	var run database.IngestionRun
	err := pool.QueryRow(ctx, `
		SELECT id, chain_slug, target_date, source, status, started_at, completed_at,
		       total_files, processed_files, total_entries, processed_entries, error_count,
		       metadata, parent_run_id, rerun_type, rerun_target_id, created_at
		FROM ingestion_runs
		WHERE id = $1
	`, runID).Scan(
		&run.ID, &run.ChainSlug, &run.TargetDate, &run.Source, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.TotalFiles, &run.ProcessedFiles, &run.TotalEntries, &run.ProcessedEntries, &run.ErrorCount,
		&run.Metadata, &run.ParentRunID, &run.RerunType, &run.RerunTargetID, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func RecordTotalFiles(ctx context.Context, pool *pgxpool.Pool, runID string, totalFiles int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET total_files = $1 WHERE id = $2
	`, totalFiles, runID)
	return err
}

func AddTotalEntries(ctx context.Context, pool *pgxpool.Pool, runID string, count int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET total_entries = total_entries + $1 WHERE id = $2
	`, count, runID)
	return err
}

func IncrementProcessedFiles(ctx context.Context, pool *pgxpool.Pool, runID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET processed_files = processed_files + 1 WHERE id = $1
	`, runID)
	return err
}

func AddProcessedEntries(ctx context.Context, pool *pgxpool.Pool, runID string, count int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET processed_entries = processed_entries + $1 WHERE id = $2
	`, count, runID)
	return err
}

func AddErrorCount(ctx context.Context, pool *pgxpool.Pool, runID string, count int) error {
	if count == 0 {
		return nil
	}
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET error_count = error_count + $1 WHERE id = $2
	`, count, runID)
	return err
}

func MarkRunCompleted(ctx context.Context, pool *pgxpool.Pool, runID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs SET status = 'completed', completed_at = NOW() WHERE id = $1
	`, runID)
	return err
}

// MarkRunFailed records the terminal failure and its cause.
func MarkRunFailed(ctx context.Context, pool *pgxpool.Pool, runID string, errorMsg string) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = 'failed',
		    completed_at = NOW(),
		    metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), '{error}', to_jsonb($1::text))
		WHERE id = $2
	`, errorMsg, runID)
	return err
}

// CheckRunCompletion promotes a run to its terminal status once every file
// reached a terminal state. Completed-with-failures becomes 'failed'. The
// derived status overrides whatever the run currently says.
func CheckRunCompletion(ctx context.Context, pool *pgxpool.Pool, runID string) (bool, error) {
	var totalFiles, terminalFiles, failedFiles int
	err := pool.QueryRow(ctx, `
		SELECT r.total_files,
		       COUNT(f.id) FILTER (WHERE f.status IN ('completed', 'failed')),
		       COUNT(f.id) FILTER (WHERE f.status = 'failed')
		FROM ingestion_runs r
		LEFT JOIN ingestion_files f ON f.run_id = r.id
		WHERE r.id = $1
		GROUP BY r.total_files
	`, runID).Scan(&totalFiles, &terminalFiles, &failedFiles)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check run completion: %w", err)
	}

	if totalFiles == 0 || terminalFiles < totalFiles {
		return false, nil
	}

	if failedFiles > 0 {
		return true, MarkRunFailed(ctx, pool, runID, fmt.Sprintf("%d of %d files failed", failedFiles, totalFiles))
	}
	return true, MarkRunCompleted(ctx, pool, runID)
}

// RecordRunError appends one row to the ingestion error log.
func RecordRunError(ctx context.Context, pool *pgxpool.Pool, runID string, fileID *string, phase, errType, message, severity string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_errors (id, run_id, file_id, phase, error_type, error_message, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, cuid2.GeneratePrefixedId("ierr", cuid2.PrefixedIdOptions{}), runID, fileID, phase, errType, message, severity)
	if err != nil {
		// The error log must never fail the pipeline.
		return
	}
}
