package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// StaleRunSweeper periodically marks abandoned ingestion runs as interrupted.
// A run is abandoned when it has been 'running' longer than maxAge with no
// progress; this catches CLI processes that died mid-run and worker fleets
// that lost every message of a run to the dead-letter queue.
type StaleRunSweeper struct {
	pool     *pgxpool.Pool
	logger   *zerolog.Logger
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
}

func NewStaleRunSweeper(pool *pgxpool.Pool, logger *zerolog.Logger, interval, maxAge time.Duration) *StaleRunSweeper {
	return &StaleRunSweeper{
		pool:     pool,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until the context is cancelled or
// Stop is called.
func (s *StaleRunSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("maxAge", s.maxAge).
		Msg("Starting stale run sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Stale run sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Stale run sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if err := s.SweepStaleRuns(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to sweep stale runs")
			}
		}
	}
}

// Stop signals the sweeper to stop
func (s *StaleRunSweeper) Stop() {
	close(s.stopChan)
}

// SweepStaleRuns marks runs stuck in 'running' past maxAge as interrupted,
// along with their non-terminal files.
func (s *StaleRunSweeper) SweepStaleRuns(ctx context.Context) error {
	cutoff := time.Now().Add(-s.maxAge)

	rows, err := s.pool.Query(ctx, `
		UPDATE ingestion_runs
		SET status = 'interrupted',
		    completed_at = NOW(),
		    metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb),
			'{interrupted_reason}', to_jsonb('No progress past deadline'::text))
		WHERE status = 'running' AND started_at < $1
		RETURNING id, chain_slug
	`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to sweep stale runs: %w", err)
	}
	defer rows.Close()

	var swept []string
	for rows.Next() {
		var id, chain string
		if err := rows.Scan(&id, &chain); err != nil {
			return fmt.Errorf("failed to scan swept run: %w", err)
		}
		s.logger.Warn().Str("id", id).Str("chain", chain).Msg("Marked stale run as interrupted")
		swept = append(swept, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(swept) == 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE ingestion_files
		SET status = 'failed', processed_at = NOW()
		WHERE run_id = ANY($1) AND status NOT IN ('completed', 'failed')
	`, swept)
	if err != nil {
		return fmt.Errorf("failed to fail files of stale runs: %w", err)
	}

	s.logger.Info().Int("count", len(swept)).Msg("Swept stale runs")
	return nil
}
