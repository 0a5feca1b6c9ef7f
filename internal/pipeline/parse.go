package pipeline

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// maxLoggedParseErrors caps how many per-entry parse errors reach the run log.
const maxLoggedParseErrors = 5

// EntryParseResult is one entry's parse output, grouped by store. Rows keeps
// the valid rows in file order for chunking.
type EntryParseResult struct {
	Rows        []types.NormalizedRow
	RowsByStore map[string][]types.NormalizedRow
	TotalRows   int
	ValidRows   int
	Errors      []string
	Warnings    int
}

// ResultFromRows rebuilds a parse result from already-normalized rows, used
// when persisting a chunk loaded back from blob storage.
func ResultFromRows(rows []types.NormalizedRow) *EntryParseResult {
	return &EntryParseResult{
		Rows:        rows,
		RowsByStore: groupRowsByStore(rows),
		TotalRows:   len(rows),
		ValidRows:   len(rows),
	}
}

// ParseEntry parses one expanded entry into normalized rows grouped by store
// identifier. Rows without a store identifier group under "unknown".
func (p *Pipeline) ParseEntry(adapter registry.ChainAdapter, entry types.ExpandedFile) (*EntryParseResult, error) {
	parsed, err := adapter.Parse(entry.Content, entry.InnerFilename, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", entry.InnerFilename, err)
	}

	result := &EntryParseResult{
		Rows:        parsed.Rows,
		RowsByStore: groupRowsByStore(parsed.Rows),
		TotalRows:   parsed.TotalRows,
		ValidRows:   parsed.ValidRows,
		Warnings:    len(parsed.Warnings),
	}

	for i, e := range parsed.Errors {
		if i >= maxLoggedParseErrors {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %d further parse errors truncated", entry.InnerFilename, len(parsed.Errors)-maxLoggedParseErrors))
			break
		}
		msg := e.Message
		if e.RowNumber != nil {
			msg = fmt.Sprintf("row %d: %s", *e.RowNumber, msg)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", entry.InnerFilename, msg))
	}

	log.Info().
		Str("chain", adapter.Slug()).
		Str("entry", entry.InnerFilename).
		Int("total_rows", parsed.TotalRows).
		Int("valid_rows", parsed.ValidRows).
		Int("errors", len(parsed.Errors)).
		Int("stores", len(result.RowsByStore)).
		Msg("parsed entry")

	return result, nil
}

// groupRowsByStore groups normalized rows by their store identifier, with an
// "unknown" bucket for rows that carry none.
func groupRowsByStore(rows []types.NormalizedRow) map[string][]types.NormalizedRow {
	grouped := make(map[string][]types.NormalizedRow)
	for _, row := range rows {
		key := row.StoreIdentifier
		if key == "" {
			key = "unknown"
		}
		grouped[key] = append(grouped[key], row)
	}
	return grouped
}

// SplitChunks slices rows into chunks of chunkSize, preserving order. Chunk
// indices are zero-based.
func SplitChunks(rows []types.NormalizedRow, chunkSize int) [][]types.NormalizedRow {
	if chunkSize <= 0 || len(rows) == 0 {
		return [][]types.NormalizedRow{rows}
	}
	chunks := make([][]types.NormalizedRow, 0, (len(rows)+chunkSize-1)/chunkSize)
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
