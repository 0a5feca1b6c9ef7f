package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appconfig "github.com/damir5/kosarica-sub000/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/queue"
	"github.com/damir5/kosarica-sub000/internal/workers"
)

var workerConcurrency int

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker process",
	Long: `Consume ingestion messages from the Redis queue and process them with
bounded parallelism. Each pipeline phase (discover, fetch, expand, parse,
persist) travels as its own message, so a crash mid-run loses at most the
messages in flight; retries with exponential backoff and a dead-letter
queue handle transient failures.

The worker runs until interrupted (SIGINT/SIGTERM).`,
	Example: `  price-service worker
  price-service worker --concurrency 10`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of parallel consumers (default from config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.InitializeDefaultAdapters(); err != nil {
		return fmt.Errorf("failed to initialize adapters: %w", err)
	}

	store, storeType, err := buildStorage(ctx)
	if err != nil {
		return err
	}

	redisURL := appconfig.GetRedisURL()
	q, err := queue.NewFromURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()
	if err := q.Ping(ctx); err != nil {
		return fmt.Errorf("queue broker unreachable: %w", err)
	}

	workerCfg := workers.DefaultConfig()
	if cfg != nil {
		if cfg.Worker.Concurrency > 0 {
			workerCfg.Concurrency = cfg.Worker.Concurrency
		}
		if cfg.Worker.MaxRetries > 0 {
			workerCfg.MaxRetries = cfg.Worker.MaxRetries
		}
		if cfg.Worker.PollTimeout > 0 {
			workerCfg.PollTimeout = cfg.Worker.PollTimeout
		}
		if cfg.Worker.PromoteInterval > 0 {
			workerCfg.PromoteInterval = cfg.Worker.PromoteInterval
		}
	}
	if workerConcurrency > 0 {
		workerCfg.Concurrency = workerConcurrency
	}

	chunkSize := workers.DefaultChunkSize
	if cfg != nil && cfg.Ingestion.ChunkSize > 0 {
		chunkSize = cfg.Ingestion.ChunkSize
	}

	p := pipeline.New(database.Pool(), store, storeType)
	w := workers.New(q, workerCfg)
	workers.RegisterIngestionHandlers(w, p, q, store, chunkSize)

	logger.Info().
		Int("concurrency", workerCfg.Concurrency).
		Int("maxRetries", workerCfg.MaxRetries).
		Int("chunkSize", chunkSize).
		Str("storage", string(storeType)).
		Msg("Worker starting")

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	logger.Info().Msg("Worker shut down cleanly")
	return nil
}
