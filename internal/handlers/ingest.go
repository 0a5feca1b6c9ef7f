package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damir5/kosarica-sub000/internal/chains"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/queue"
)

// ingestQueue is the queue ingestion requests are published to. Set once at
// startup; handlers reject admin requests while it is nil.
var ingestQueue *queue.Queue

// SetQueue wires the queue used by the admin ingestion endpoints.
func SetQueue(q *queue.Queue) {
	ingestQueue = q
}

// IngestChainRequest represents a request body for triggering ingestion
type IngestChainRequest struct {
	TargetDate string `json:"targetDate,omitempty"` // YYYY-MM-DD format
}

// IngestChainStartedResponse represents the 202 response when ingestion is started
type IngestChainStartedResponse struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	PollURL string `json:"pollUrl"`
	Message string `json:"message,omitempty"`
}

// IngestChain triggers ingestion for a specific chain asynchronously
// POST /internal/admin/ingest/:chain
// Returns 202 Accepted immediately with runId and pollUrl
func IngestChain(c *gin.Context) {
	chainID := c.Param("chain")
	if chainID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Chain parameter is required",
		})
		return
	}

	var req IngestChainRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			// Ignore bind errors, use defaults
		}
	}

	if !chains.IsValidChain(chainID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid chain ID: %s", chainID),
		})
		return
	}

	if ingestQueue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Ingestion queue not configured",
		})
		return
	}

	pool := database.Pool()
	ctx := c.Request.Context()

	runID, err := pipeline.CreateRun(ctx, pool, pipeline.RunOptions{
		ChainSlug:  chainID,
		TargetDate: req.TargetDate,
		Source:     "api",
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create ingestion run: %v", err),
		})
		return
	}

	msg := queue.NewMessage(queue.MessageDiscover, runID, chainID)
	msg.TargetDate = req.TargetDate
	if err := ingestQueue.Enqueue(ctx, msg); err != nil {
		_ = pipeline.MarkRunFailed(ctx, pool, runID, "failed to enqueue discover message")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to enqueue ingestion: %v", err),
		})
		return
	}

	c.JSON(http.StatusAccepted, IngestChainStartedResponse{
		RunID:   runID,
		Status:  "started",
		PollURL: fmt.Sprintf("/internal/ingestion/runs/%s", runID),
		Message: fmt.Sprintf("Ingestion queued for chain %s", chainID),
	})
}

// GetIngestionStatus returns the status of an ingestion run
// GET /internal/admin/ingest/status/:runId
func GetIngestionStatus(c *gin.Context) {
	runID := c.Param("runId")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "runId parameter is required",
		})
		return
	}

	pool := database.Pool()
	var status string
	err := pool.QueryRow(c.Request.Context(), "SELECT status FROM ingestion_runs WHERE id = $1", runID).Scan(&status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to lookup status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runId":  runID,
		"status": status,
	})
}

// ListIngestionRuns returns recent ingestion runs for a chain
// GET /internal/admin/ingest/runs/:chain
func ListIngestionRuns(c *gin.Context) {
	chainID := c.Param("chain")
	if chainID == "" {
		c.JSON(http.StatusOK, gin.H{
			"runs":    []interface{}{},
			"message": "Listing all runs (chain not specified)",
		})
		return
	}

	pool := database.Pool()
	rows, err := pool.Query(c.Request.Context(), `
		SELECT id, status, started_at, completed_at, processed_files, processed_entries
		FROM ingestion_runs
		WHERE chain_slug = $1 AND source = 'api'
		ORDER BY started_at DESC
		LIMIT 20
	`, chainID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to lookup runs"})
		return
	}
	defer rows.Close()

	var runs []interface{}
	for rows.Next() {
		var run struct {
			ID               string     `json:"id"`
			Status           string     `json:"status"`
			StartedAt        time.Time  `json:"startedAt"`
			CompletedAt      *time.Time `json:"completedAt,omitempty"`
			ProcessedFiles   int        `json:"processedFiles"`
			ProcessedEntries int        `json:"processedEntries"`
		}
		err := rows.Scan(
			&run.ID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.ProcessedFiles,
			&run.ProcessedEntries,
		)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	c.JSON(http.StatusOK, gin.H{
		"chain": chainID,
		"runs":  runs,
	})
}
