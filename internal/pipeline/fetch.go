package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/storage"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// FetchResult carries a downloaded, archived file into the expand phase.
type FetchResult struct {
	StorageKey string
	Hash       string
	Content    []byte
	IsZip      bool
	ArchiveID  string
	// Duplicate is set when the content hash already exists in the archive;
	// such files are skipped without parsing.
	Duplicate bool
}

// Fetch downloads one discovered file, archives it in blob storage, and
// records it in the archives table. A file whose content hash is already
// archived comes back with Duplicate set and is not stored again.
func (p *Pipeline) Fetch(ctx context.Context, adapter registry.ChainAdapter, file types.DiscoveredFile) (*FetchResult, error) {
	chainSlug := adapter.Slug()

	fetched, err := adapter.Fetch(file)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", file.Filename, err)
	}

	hash := database.CalculateChecksum(fetched.Content)

	existing, err := database.GetArchiveByChecksum(ctx, hash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("archive dedup check for %s: %w", file.Filename, err)
	}
	if existing != nil {
		log.Info().
			Str("chain", chainSlug).
			Str("filename", file.Filename).
			Str("archive_id", existing.ID).
			Msg("skipping duplicate file")
		return &FetchResult{
			Hash:      hash,
			ArchiveID: existing.ID,
			Duplicate: true,
		}, nil
	}

	now := time.Now()
	storageKey := storage.BuildArchiveKey(chainSlug, now, file.Filename)

	meta := &storage.Metadata{
		OriginalName: file.Filename,
		ChainSlug:    chainSlug,
		SourceURL:    file.URL,
		DownloadedAt: now,
	}
	if err := p.store.Put(ctx, storageKey, fetched.Content, meta); err != nil {
		return nil, fmt.Errorf("archive %s: %w", file.Filename, err)
	}

	archiveID := database.GenerateArchiveID()
	fileSize := int64(len(fetched.Content))
	archive := &database.Archive{
		ID:             archiveID,
		ChainSlug:      chainSlug,
		SourceURL:      file.URL,
		Filename:       file.Filename,
		OriginalFormat: string(file.Type),
		ArchivePath:    storageKey,
		ArchiveType:    string(p.storeType),
		FileSize:       &fileSize,
		Checksum:       hash,
		DownloadedAt:   now,
	}
	if err := database.CreateArchive(ctx, archive); err != nil {
		// Blob already stored; the archive record is best-effort.
		log.Warn().Err(err).Str("filename", file.Filename).Msg("failed to record archive")
	}

	log.Info().
		Str("chain", chainSlug).
		Str("filename", file.Filename).
		Int64("bytes", fileSize).
		Str("storage_key", storageKey).
		Msg("archived file")

	return &FetchResult{
		StorageKey: storageKey,
		Hash:       hash,
		Content:    fetched.Content,
		IsZip:      file.Type == types.FileTypeZIP,
		ArchiveID:  archiveID,
	}, nil
}
