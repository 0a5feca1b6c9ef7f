package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/damir5/kosarica-sub000/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/queue"
)

var (
	enqueueDate  string
	enqueueAll   bool
	enqueueStore string
)

// enqueueCmd represents the enqueue command
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <chain>",
	Short: "Queue an ingestion run for processing by workers",
	Long: `Create an ingestion run and push its discover message onto the Redis
queue. A running worker process picks it up and drives the pipeline
asynchronously. The command returns immediately with the run ID; use
'price-service status <run-id>' or the API to follow progress.`,
	Example: `  price-service enqueue konzum
  price-service enqueue lidl --date 2026-01-19
  price-service enqueue --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVar(&enqueueDate, "date", "", "Target date for discovery (format: YYYY-MM-DD, defaults to today)")
	enqueueCmd.Flags().BoolVar(&enqueueAll, "all", false, "Enqueue all chains")
	enqueueCmd.Flags().StringVarP(&enqueueStore, "store", "s", "", "Only process files for this store identifier")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var chains []config.ChainID
	if enqueueAll {
		chains = config.ChainIDs
	} else {
		if len(args) == 0 {
			return fmt.Errorf("either specify <chain> or use --all flag")
		}
		chainID := args[0]
		if !config.IsValidChainID(chainID) {
			return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", chainID, strings.Join(validChains(), ", "))
		}
		chains = []config.ChainID{config.ChainID(chainID)}
	}

	targetDate := enqueueDate
	if targetDate == "" {
		targetDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		return fmt.Errorf("invalid date format %q, expected YYYY-MM-DD", enqueueDate)
	}

	q, err := queue.NewFromURL(appconfig.GetRedisURL())
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()

	pool := database.Pool()
	for _, chainID := range chains {
		slug := string(chainID)
		runID, err := pipeline.CreateRun(ctx, pool, pipeline.RunOptions{
			ChainSlug:   slug,
			TargetDate:  targetDate,
			Source:      "worker",
			StoreFilter: enqueueStore,
		})
		if err != nil {
			return fmt.Errorf("failed to create run for %s: %w", slug, err)
		}

		msg := queue.NewMessage(queue.MessageDiscover, runID, slug)
		msg.TargetDate = targetDate
		msg.StoreFilter = enqueueStore
		if err := q.Enqueue(ctx, msg); err != nil {
			if markErr := pipeline.MarkRunFailed(ctx, pool, runID, "failed to enqueue discover message"); markErr != nil {
				logger.Error().Err(markErr).Str("runId", runID).Msg("Failed to mark run failed")
			}
			return fmt.Errorf("failed to enqueue %s: %w", slug, err)
		}

		fmt.Printf("%s\t%s\n", slug, runID)
	}

	return nil
}
