package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/gin-gonic/gin"
)

type ErrorSummary struct {
	ErrorRate    float64      `json:"errorRate"`
	TotalEntries int          `json:"totalEntries"`
	ErrorCount   int          `json:"errorCount"`
	Chains       []ChainError `json:"chains"`
	TimeRange    string       `json:"timeRange"`
}

type ChainError struct {
	ChainSlug    string  `json:"chainSlug"`
	ChainName    string  `json:"chainName"`
	Runs         int     `json:"runs"`
	TotalEntries int     `json:"totalEntries"`
	ErrorCount   int     `json:"errorCount"`
	ErrorRate    float64 `json:"errorRate"`
	Status       string  `json:"status"`
}

func getChainName(slug string) string {
	switch slug {
	case "konzum":
		return "Konzum"
	case "lidl":
		return "Lidl"
	case "plodine":
		return "Plodine"
	case "interspar":
		return "Interspar"
	case "eurospin":
		return "Eurospin"
	case "dm":
		return "DM"
	case "ktc":
		return "KTC"
	case "metro":
		return "Metro"
	case "studenac":
		return "Studenac"
	case "trgocentar":
		return "Trgocentar"
	case "kaufland":
		return "Kaufland"
	default:
		return slug
	}
}

// GetErrorSummary returns per-chain ingestion health over a recent window,
// computed from run counters. A chain is degraded above 3% and critical
// above 10% error rate.
// GET /internal/ingestion/error-summary?hours=24
func GetErrorSummary(c *gin.Context) {
	hoursStr := c.DefaultQuery("hours", "24")
	hours, err := strconv.Atoi(hoursStr)
	if err != nil || hours <= 0 {
		hours = 24
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	pool := database.Pool()
	ctx := context.Background()

	const query = `
		SELECT
			chain_slug,
			COUNT(*) AS runs,
			COALESCE(SUM(processed_entries), 0) AS total_entries,
			COALESCE(SUM(error_count), 0) AS error_count
		FROM ingestion_runs
		WHERE started_at >= $1
		GROUP BY chain_slug
		ORDER BY chain_slug
	`

	rows, err := pool.Query(ctx, query, since)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to query error statistics"})
		return
	}
	defer rows.Close()

	chains := make([]ChainError, 0)
	var overallEntries int
	var overallErrors int

	for rows.Next() {
		var chainSlug string
		var runCount, totalEntries, errorCount int

		if err := rows.Scan(&chainSlug, &runCount, &totalEntries, &errorCount); err != nil {
			c.JSON(500, gin.H{"error": "Failed to scan row"})
			return
		}

		errorRate := 0.0
		if totalEntries > 0 {
			errorRate = float64(errorCount) / float64(totalEntries)
		}

		status := "healthy"
		if errorRate > 0.10 {
			status = "critical"
		} else if errorRate > 0.03 {
			status = "degraded"
		}

		chains = append(chains, ChainError{
			ChainSlug:    chainSlug,
			ChainName:    getChainName(chainSlug),
			Runs:         runCount,
			TotalEntries: totalEntries,
			ErrorCount:   errorCount,
			ErrorRate:    errorRate,
			Status:       status,
		})

		overallEntries += totalEntries
		overallErrors += errorCount
	}

	overallErrorRate := 0.0
	if overallEntries > 0 {
		overallErrorRate = float64(overallErrors) / float64(overallEntries)
	}

	c.JSON(200, ErrorSummary{
		ErrorRate:    overallErrorRate,
		TotalEntries: overallEntries,
		ErrorCount:   overallErrors,
		Chains:       chains,
		TimeRange:    fmt.Sprintf("Last %d hours", hours),
	})
}
