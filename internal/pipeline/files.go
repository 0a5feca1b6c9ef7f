package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// CreateIngestionFile inserts the per-file tracking record.
func CreateIngestionFile(ctx context.Context, pool *pgxpool.Pool, runID string, file types.DiscoveredFile, size int, hash, storageKey, status string, meta map[string]interface{}) (string, error) {
	fileID := cuid2.GeneratePrefixedId("igf", cuid2.PrefixedIdOptions{})

	var metadataJSON *string
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("encode file metadata: %w", err)
		}
		s := string(data)
		metadataJSON = &s
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO ingestion_files (
			id, run_id, filename, file_type, file_size, file_hash, storage_key,
			status, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, fileID, runID, file.Filename, string(file.Type), size, hash, nullable(storageKey), status, metadataJSON)
	if err != nil {
		return "", fmt.Errorf("create ingestion file record: %w", err)
	}
	return fileID, nil
}

func SetFileEntryCount(ctx context.Context, pool *pgxpool.Pool, fileID string, entries int) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_files SET entry_count = $1 WHERE id = $2
	`, entries, fileID)
	return err
}

func MarkFileCompleted(ctx context.Context, pool *pgxpool.Pool, fileID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_files SET status = 'completed', processed_at = NOW() WHERE id = $1
	`, fileID)
	return err
}

func MarkFileFailed(ctx context.Context, pool *pgxpool.Pool, fileID string) error {
	_, err := pool.Exec(ctx, `
		UPDATE ingestion_files SET status = 'failed', processed_at = NOW() WHERE id = $1
	`, fileID)
	return err
}

// GetIngestionFile loads one file record.
func GetIngestionFile(ctx context.Context, pool *pgxpool.Pool, fileID string) (*database.IngestionFile, error) {
	var f database.IngestionFile
	err := pool.QueryRow(ctx, `
		SELECT id, run_id, filename, file_type, file_size, file_hash, storage_key,
		       status, entry_count, processed_at, metadata,
		       total_chunks, processed_chunks, chunk_size, created_at
		FROM ingestion_files
		WHERE id = $1
	`, fileID).Scan(
		&f.ID, &f.RunID, &f.Filename, &f.FileType, &f.FileSize, &f.FileHash, &f.StorageKey,
		&f.Status, &f.EntryCount, &f.ProcessedAt, &f.Metadata,
		&f.TotalChunks, &f.ProcessedChunks, &f.ChunkSize, &f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load ingestion file %s: %w", fileID, err)
	}
	return &f, nil
}

// GetRunFiles returns the file records of a run, oldest first.
func GetRunFiles(ctx context.Context, pool *pgxpool.Pool, runID string) ([]database.IngestionFile, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, run_id, filename, file_type, file_size, file_hash, storage_key,
		       status, entry_count, processed_at, metadata,
		       total_chunks, processed_chunks, chunk_size, created_at
		FROM ingestion_files
		WHERE run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]database.IngestionFile, 0)
	for rows.Next() {
		var f database.IngestionFile
		if err := rows.Scan(
			&f.ID, &f.RunID, &f.Filename, &f.FileType, &f.FileSize, &f.FileHash, &f.StorageKey,
			&f.Status, &f.EntryCount, &f.ProcessedAt, &f.Metadata,
			&f.TotalChunks, &f.ProcessedChunks, &f.ChunkSize, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
