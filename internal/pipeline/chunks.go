package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
	"github.com/damir5/kosarica-sub000/internal/storage"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// Queue-mode progress accounting works in units. A file starts with one unit
// per expanded entry; chunking an entry replaces its single unit with one
// unit per chunk. The file is done when processed units reach the total.

// BuildChunkKey returns the blob key of one serialized chunk.
func BuildChunkKey(runID, fileID string, chunkIndex int) string {
	return fmt.Sprintf("chunks/%s/%s/%04d.json", runID, fileID, chunkIndex)
}

// SetFileWorkUnits initializes a file's progress counters, one unit per
// expanded entry.
func SetFileWorkUnits(ctx context.Context, pool *pgxpool.Pool, fileID string, units int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_files SET total_chunks = $1, processed_chunks = 0 WHERE id = $2
	`, units, fileID)
	if err != nil {
		return fmt.Errorf("init progress for %s: %w", fileID, err)
	}
	return nil
}

// AdvanceFileProgress counts one finished unit. Reports whether the file's
// units are all done.
func AdvanceFileProgress(ctx context.Context, pool *pgxpool.Pool, fileID string) (bool, error) {
	var total, processed int
	err := pool.QueryRow(ctx, `
		UPDATE ingestion_files
		SET processed_chunks = COALESCE(processed_chunks, 0) + 1
		WHERE id = $1
		RETURNING COALESCE(total_chunks, 0), processed_chunks
	`, fileID).Scan(&total, &processed)
	if err != nil {
		return false, fmt.Errorf("advance progress for %s: %w", fileID, err)
	}
	return total > 0 && processed >= total, nil
}

// chunkPayload is the blob format of one serialized chunk. The entry name
// travels with the rows so a chunk can be re-persisted without its parse
// message.
type chunkPayload struct {
	EntryName string                `json:"entryName,omitempty"`
	Rows      []types.NormalizedRow `json:"rows"`
}

// WriteChunks serializes one entry's rows into chunk blobs and inserts one
// ingestion_chunks record per chunk. The entry's single work unit is replaced
// by one unit per chunk. Returns the chunk ids in index order.
func (p *Pipeline) WriteChunks(ctx context.Context, runID, fileID, entryName string, chunks [][]types.NormalizedRow, chunkSize int) ([]string, error) {
	total := len(chunks)
	if _, err := p.pool.Exec(ctx, `
		UPDATE ingestion_files
		SET total_chunks = COALESCE(total_chunks, 1) + $1, chunk_size = $2
		WHERE id = $3
	`, total-1, chunkSize, fileID); err != nil {
		return nil, fmt.Errorf("record chunk plan: %w", err)
	}

	ids := make([]string, 0, total)
	startRow := 0
	for index, rows := range chunks {
		data, err := json.Marshal(chunkPayload{EntryName: entryName, Rows: rows})
		if err != nil {
			return nil, fmt.Errorf("encode chunk %d: %w", index, err)
		}
		key := BuildChunkKey(runID, fileID, index)
		if err := p.store.Put(ctx, key, data, &storage.Metadata{ContentType: "application/json"}); err != nil {
			return nil, fmt.Errorf("store chunk %d: %w", index, err)
		}

		chunkID := cuid2.GeneratePrefixedId("chk", cuid2.PrefixedIdOptions{})
		_, err = p.pool.Exec(ctx, `
			INSERT INTO ingestion_chunks (
				id, file_id, run_id, chunk_index, start_row, end_row, row_count,
				storage_key, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', NOW())
		`, chunkID, fileID, runID, index, startRow, startRow+len(rows)-1, len(rows), key)
		if err != nil {
			return nil, fmt.Errorf("record chunk %d: %w", index, err)
		}
		ids = append(ids, chunkID)
		startRow += len(rows)
	}
	return ids, nil
}

// CloneChunk inserts a fresh chunk record for a rerun, pointing at the
// original chunk's blob. Returns the new chunk id.
func CloneChunk(ctx context.Context, pool *pgxpool.Pool, orig *database.IngestionChunk, runID, fileID string) (string, error) {
	chunkID := cuid2.GeneratePrefixedId("chk", cuid2.PrefixedIdOptions{})
	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_chunks (
			id, file_id, run_id, chunk_index, start_row, end_row, row_count,
			storage_key, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', NOW())
	`, chunkID, fileID, runID, orig.ChunkIndex, orig.StartRow, orig.EndRow, orig.RowCount, orig.StorageKey)
	if err != nil {
		return "", fmt.Errorf("clone chunk %s: %w", orig.ID, err)
	}
	return chunkID, nil
}

// GetChunk loads one chunk record.
func GetChunk(ctx context.Context, pool *pgxpool.Pool, chunkID string) (*database.IngestionChunk, error) {
	var c database.IngestionChunk
	err := pool.QueryRow(ctx, `
		SELECT id, file_id, run_id, chunk_index, start_row, end_row, row_count,
		       storage_key, status, processed_at, created_at
		FROM ingestion_chunks
		WHERE id = $1
	`, chunkID).Scan(
		&c.ID, &c.FileID, &c.RunID, &c.ChunkIndex, &c.StartRow, &c.EndRow, &c.RowCount,
		&c.StorageKey, &c.Status, &c.ProcessedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load chunk %s: %w", chunkID, err)
	}
	return &c, nil
}

// ReadChunkRows loads and decodes one chunk's rows from blob storage,
// returning the entry name the rows came from.
func (p *Pipeline) ReadChunkRows(ctx context.Context, chunk *database.IngestionChunk) (string, []types.NormalizedRow, error) {
	data, err := p.store.Get(ctx, chunk.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("read chunk blob %s: %w", chunk.StorageKey, err)
	}
	var payload chunkPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", nil, fmt.Errorf("decode chunk %s: %w", chunk.ID, err)
	}
	return payload.EntryName, payload.Rows, nil
}

// MarkChunkDone records a chunk's terminal status and advances the file's
// progress. Reports whether the file just finished all units.
func MarkChunkDone(ctx context.Context, pool *pgxpool.Pool, chunkID, fileID string, failed bool) (bool, error) {
	status := "completed"
	if failed {
		status = "failed"
	}
	if _, err := pool.Exec(ctx, `
		UPDATE ingestion_chunks SET status = $1, processed_at = NOW() WHERE id = $2
	`, status, chunkID); err != nil {
		return false, fmt.Errorf("mark chunk %s: %w", chunkID, err)
	}
	return AdvanceFileProgress(ctx, pool, fileID)
}

// FileHasFailedChunks reports whether any of a file's chunks failed.
func FileHasFailedChunks(ctx context.Context, pool *pgxpool.Pool, fileID string) (bool, error) {
	var anyFailed bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ingestion_chunks WHERE file_id = $1 AND status = 'failed')
	`, fileID).Scan(&anyFailed)
	return anyFailed, err
}
