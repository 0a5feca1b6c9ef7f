package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	appconfig "github.com/damir5/kosarica-sub000/config"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/queue"
)

var rerunType string

// rerunCmd represents the rerun command
var rerunCmd = &cobra.Command{
	Use:   "rerun <target-id>",
	Short: "Queue a rerun of a previous run, file, or chunk",
	Long: `Queue a rerun message for a worker to replay previously archived data.
The target is identified by its ID and --type:

  run    replay every file of the run from its archived blobs
  file   replay a single ingestion file
  chunk  replay a single persisted chunk

The rerun executes as a fresh run linked to the original via its parent
run ID, reading from the archive store rather than the chain portals.`,
	Example: `  price-service rerun run_abc123
  price-service rerun igf_def456 --type file
  price-service rerun chk_ghi789 --type chunk`,
	Args: cobra.ExactArgs(1),
	RunE: runRerun,
}

func init() {
	rootCmd.AddCommand(rerunCmd)

	rerunCmd.Flags().StringVar(&rerunType, "type", "run", "Rerun granularity: run, file, or chunk")
}

func runRerun(cmd *cobra.Command, args []string) error {
	targetID := args[0]
	if rerunType != "run" && rerunType != "file" && rerunType != "chunk" {
		return fmt.Errorf("invalid --type %q, must be run, file, or chunk", rerunType)
	}

	ctx := context.Background()

	runID, chainSlug, err := resolveRerunOrigin(ctx, targetID)
	if err != nil {
		return err
	}

	q, err := queue.NewFromURL(appconfig.GetRedisURL())
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()

	msg := queue.NewMessage(queue.MessageRerun, runID, chainSlug)
	msg.RerunType = rerunType
	msg.RerunTargetID = targetID
	if err := q.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to queue rerun: %w", err)
	}

	fmt.Printf("Rerun queued (%s %s), message %s\n", rerunType, targetID, msg.ID)
	return nil
}

// resolveRerunOrigin maps the rerun target back to its originating run so
// the message carries the right run ID and chain slug.
func resolveRerunOrigin(ctx context.Context, targetID string) (runID, chainSlug string, err error) {
	pool := database.Pool()

	var query string
	switch rerunType {
	case "run":
		query = `SELECT id, chain_slug FROM ingestion_runs WHERE id = $1`
	case "file":
		query = `
			SELECT r.id, r.chain_slug
			FROM ingestion_files f
			JOIN ingestion_runs r ON r.id = f.run_id
			WHERE f.id = $1`
	case "chunk":
		query = `
			SELECT r.id, r.chain_slug
			FROM ingestion_chunks c
			JOIN ingestion_files f ON f.id = c.file_id
			JOIN ingestion_runs r ON r.id = f.run_id
			WHERE c.id = $1`
	}

	err = pool.QueryRow(ctx, query, targetID).Scan(&runID, &chainSlug)
	if err == pgx.ErrNoRows {
		return "", "", fmt.Errorf("%s %s not found", rerunType, targetID)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve %s %s: %w", rerunType, targetID, err)
	}
	return runID, chainSlug, nil
}
