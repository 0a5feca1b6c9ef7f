package workers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/queue"
	"github.com/damir5/kosarica-sub000/internal/storage"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// DefaultChunkSize is the row count above which a parsed entry is split into
// independently persisted chunks.
const DefaultChunkSize = 5000

// IngestionHandlers binds the pipeline phases to queue messages so a run can
// fan out across worker processes instead of running in one loop.
type IngestionHandlers struct {
	pipeline  *pipeline.Pipeline
	queue     *queue.Queue
	store     storage.Storage
	chunkSize int
}

// RegisterIngestionHandlers wires one handler per message type onto the
// worker, plus the dead-letter hook that settles run state for messages that
// exhausted their retries.
func RegisterIngestionHandlers(w *Worker, p *pipeline.Pipeline, q *queue.Queue, store storage.Storage, chunkSize int) *IngestionHandlers {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	h := &IngestionHandlers{pipeline: p, queue: q, store: store, chunkSize: chunkSize}

	w.RegisterHandler(queue.MessageDiscover, h.HandleDiscover)
	w.RegisterHandler(queue.MessageFetch, h.HandleFetch)
	w.RegisterHandler(queue.MessageExpand, h.HandleExpand)
	w.RegisterHandler(queue.MessageParse, h.HandleParse)
	w.RegisterHandler(queue.MessageParseChunked, h.HandleParse)
	w.RegisterHandler(queue.MessagePersist, h.HandlePersistFile)
	w.RegisterHandler(queue.MessagePersistChunk, h.HandlePersistChunk)
	w.RegisterHandler(queue.MessageRerun, h.HandleRerun)
	w.RegisterHandler(queue.MessageEnrichStore, h.HandleEnrichStore)
	w.OnDeadLetter(h.HandleDeadLetter)
	return h
}

func adapterFor(chainSlug string) (registry.ChainAdapter, error) {
	if !config.IsValidChainID(chainSlug) {
		return nil, fmt.Errorf("unknown chain %q", chainSlug)
	}
	return registry.GetAdapter(config.ChainID(chainSlug))
}

// HandleDiscover lists a chain's published files and fans out one fetch
// message per file.
func (h *IngestionHandlers) HandleDiscover(ctx context.Context, msg queue.Message) error {
	adapter, err := adapterFor(msg.ChainSlug)
	if err != nil {
		return err
	}
	pool := h.pipeline.Pool()

	files, err := h.pipeline.Discover(adapter, msg.TargetDate, msg.StoreFilter)
	if err != nil {
		pipeline.RecordRunError(ctx, pool, msg.RunID, nil, "discover", "http", err.Error(), "error")
		return err
	}
	if err := pipeline.RecordTotalFiles(ctx, pool, msg.RunID, len(files)); err != nil {
		return err
	}
	if len(files) == 0 {
		log.Info().Str("run_id", msg.RunID).Str("chain", msg.ChainSlug).Msg("no files published, run complete")
		return pipeline.MarkRunCompleted(ctx, pool, msg.RunID)
	}

	msgs := make([]queue.Message, 0, len(files))
	for i := range files {
		m := queue.NewMessage(queue.MessageFetch, msg.RunID, msg.ChainSlug)
		m.File = &files[i]
		msgs = append(msgs, m)
	}
	return h.queue.EnqueueBatch(ctx, msgs)
}

// HandleFetch downloads and archives one discovered file, then hands it to
// the expand phase. Content-hash duplicates finish their file record here.
func (h *IngestionHandlers) HandleFetch(ctx context.Context, msg queue.Message) error {
	if msg.File == nil {
		return fmt.Errorf("fetch message %s missing file", msg.ID)
	}
	adapter, err := adapterFor(msg.ChainSlug)
	if err != nil {
		return err
	}
	pool := h.pipeline.Pool()

	res, err := h.pipeline.Fetch(ctx, adapter, *msg.File)
	if err != nil {
		return err
	}

	if res.Duplicate {
		_, _ = pipeline.CreateIngestionFile(ctx, pool, msg.RunID, *msg.File, 0, res.Hash, "", "completed",
			map[string]interface{}{"duplicate": true, "archiveId": res.ArchiveID})
		return h.finishFile(ctx, msg.RunID)
	}

	fileID, err := pipeline.CreateIngestionFile(ctx, pool, msg.RunID, *msg.File, len(res.Content),
		res.Hash, res.StorageKey, "processing",
		map[string]interface{}{"url": msg.File.URL, "archiveId": res.ArchiveID})
	if err != nil {
		return err
	}

	next := queue.NewMessage(queue.MessageExpand, msg.RunID, msg.ChainSlug)
	next.File = msg.File
	next.FileID = fileID
	next.StorageKey = res.StorageKey
	next.FileHash = res.Hash
	return h.queue.Enqueue(ctx, next)
}

// HandleExpand loads the archived blob, expands ZIPs into entries, and fans
// out one parse message per entry.
func (h *IngestionHandlers) HandleExpand(ctx context.Context, msg queue.Message) error {
	if msg.File == nil {
		return fmt.Errorf("expand message %s missing file", msg.ID)
	}
	pool := h.pipeline.Pool()

	content, err := h.store.Get(ctx, msg.StorageKey)
	if err != nil {
		return fmt.Errorf("load archived blob %s: %w", msg.StorageKey, err)
	}
	fetchResult := &pipeline.FetchResult{
		StorageKey: msg.StorageKey,
		Hash:       msg.FileHash,
		Content:    content,
		IsZip:      msg.File.Type == types.FileTypeZIP,
	}

	entries, err := h.pipeline.Expand(ctx, msg.ChainSlug, *msg.File, fetchResult)
	if err != nil {
		pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "expand", "zip", err.Error(), "error")
		return err
	}
	_ = pipeline.SetFileEntryCount(ctx, pool, msg.FileID, len(entries))
	_ = pipeline.AddTotalEntries(ctx, pool, msg.RunID, len(entries))

	if len(entries) == 0 {
		if err := pipeline.MarkFileCompleted(ctx, pool, msg.FileID); err != nil {
			return err
		}
		return h.finishFile(ctx, msg.RunID)
	}
	if err := pipeline.SetFileWorkUnits(ctx, pool, msg.FileID, len(entries)); err != nil {
		return err
	}

	msgs := make([]queue.Message, 0, len(entries))
	for _, entry := range entries {
		m := queue.NewMessage(queue.MessageParse, msg.RunID, msg.ChainSlug)
		m.File = msg.File
		m.FileID = msg.FileID
		m.StorageKey = msg.StorageKey
		m.FileHash = msg.FileHash
		m.EntryName = entry.InnerFilename
		msgs = append(msgs, m)
	}
	return h.queue.EnqueueBatch(ctx, msgs)
}

// HandleParse parses one expanded entry. Small entries are persisted inline;
// large ones (or any entry arriving as parse_chunked) are split into chunks
// persisted by their own messages.
func (h *IngestionHandlers) HandleParse(ctx context.Context, msg queue.Message) error {
	adapter, err := adapterFor(msg.ChainSlug)
	if err != nil {
		return err
	}
	pool := h.pipeline.Pool()

	entry, err := h.loadEntry(ctx, msg)
	if err != nil {
		return err
	}

	parsed, err := h.pipeline.ParseEntry(adapter, *entry)
	if err != nil {
		pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "parse", "format", err.Error(), "error")
		return err
	}
	for _, e := range parsed.Errors {
		pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "parse", "row", e, "warning")
	}
	if len(parsed.Errors) > 0 {
		_ = pipeline.AddErrorCount(ctx, pool, msg.RunID, len(parsed.Errors))
	}

	if parsed.ValidRows == 0 {
		_ = pipeline.AddProcessedEntries(ctx, pool, msg.RunID, 1)
		return h.finishEntry(ctx, msg.RunID, msg.FileID)
	}

	if msg.Type == queue.MessageParseChunked || len(parsed.Rows) > h.chunkSize {
		chunks := pipeline.SplitChunks(parsed.Rows, h.chunkSize)
		chunkIDs, err := h.pipeline.WriteChunks(ctx, msg.RunID, msg.FileID, msg.EntryName, chunks, h.chunkSize)
		if err != nil {
			return err
		}
		_ = pipeline.AddProcessedEntries(ctx, pool, msg.RunID, 1)

		msgs := make([]queue.Message, 0, len(chunkIDs))
		for i, chunkID := range chunkIDs {
			m := queue.NewMessage(queue.MessagePersistChunk, msg.RunID, msg.ChainSlug)
			m.File = msg.File
			m.FileID = msg.FileID
			m.EntryName = msg.EntryName
			m.ChunkID = chunkID
			m.ChunkIndex = i
			msgs = append(msgs, m)
		}
		return h.queue.EnqueueBatch(ctx, msgs)
	}

	counters := h.pipeline.PersistEntry(ctx, adapter, *entry, parsed)
	h.recordPersistCounters(ctx, msg.RunID, msg.FileID, counters)
	_ = pipeline.AddProcessedEntries(ctx, pool, msg.RunID, 1)
	return h.finishEntry(ctx, msg.RunID, msg.FileID)
}

// HandlePersistChunk persists one stored chunk of normalized rows.
func (h *IngestionHandlers) HandlePersistChunk(ctx context.Context, msg queue.Message) error {
	adapter, err := adapterFor(msg.ChainSlug)
	if err != nil {
		return err
	}
	pool := h.pipeline.Pool()

	chunk, err := pipeline.GetChunk(ctx, pool, msg.ChunkID)
	if err != nil {
		return err
	}
	entryName, rows, err := h.pipeline.ReadChunkRows(ctx, chunk)
	if err != nil {
		return err
	}

	entry := types.ExpandedFile{
		InnerFilename: entryName,
		Type:          types.FileTypeCSV,
	}
	if msg.File != nil {
		entry.Parent = *msg.File
		entry.Type = msg.File.Type
	}
	if entry.InnerFilename == "" && msg.EntryName != "" {
		entry.InnerFilename = msg.EntryName
	}

	counters := h.pipeline.PersistEntry(ctx, adapter, entry, pipeline.ResultFromRows(rows))
	h.recordPersistCounters(ctx, msg.RunID, chunk.FileID, counters)

	done, err := pipeline.MarkChunkDone(ctx, pool, chunk.ID, chunk.FileID, false)
	if err != nil {
		return err
	}
	if done {
		return h.settleFile(ctx, msg.RunID, chunk.FileID)
	}
	return nil
}

// HandlePersistFile re-parses and persists a whole archived file inline,
// without chunk fan-out. Used to replay a file whose blob is still archived.
func (h *IngestionHandlers) HandlePersistFile(ctx context.Context, msg queue.Message) error {
	if msg.File == nil {
		return fmt.Errorf("persist message %s missing file", msg.ID)
	}
	adapter, err := adapterFor(msg.ChainSlug)
	if err != nil {
		return err
	}
	pool := h.pipeline.Pool()

	content, err := h.store.Get(ctx, msg.StorageKey)
	if err != nil {
		return fmt.Errorf("load archived blob %s: %w", msg.StorageKey, err)
	}
	fetchResult := &pipeline.FetchResult{
		StorageKey: msg.StorageKey,
		Hash:       msg.FileHash,
		Content:    content,
		IsZip:      msg.File.Type == types.FileTypeZIP,
	}
	entries, err := h.pipeline.Expand(ctx, msg.ChainSlug, *msg.File, fetchResult)
	if err != nil {
		pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "expand", "zip", err.Error(), "error")
		return err
	}
	_ = pipeline.SetFileEntryCount(ctx, pool, msg.FileID, len(entries))
	_ = pipeline.AddTotalEntries(ctx, pool, msg.RunID, len(entries))

	fileFailed := false
	for _, entry := range entries {
		parsed, err := h.pipeline.ParseEntry(adapter, entry)
		if err != nil {
			pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "parse", "format", err.Error(), "error")
			_ = pipeline.AddErrorCount(ctx, pool, msg.RunID, 1)
			fileFailed = true
			continue
		}
		for _, e := range parsed.Errors {
			pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "parse", "row", e, "warning")
		}
		if parsed.ValidRows > 0 {
			counters := h.pipeline.PersistEntry(ctx, adapter, entry, parsed)
			h.recordPersistCounters(ctx, msg.RunID, msg.FileID, counters)
		}
		_ = pipeline.AddProcessedEntries(ctx, pool, msg.RunID, 1)
	}

	if fileFailed {
		_ = pipeline.MarkFileFailed(ctx, pool, msg.FileID)
	} else {
		_ = pipeline.MarkFileCompleted(ctx, pool, msg.FileID)
	}
	return h.finishFile(ctx, msg.RunID)
}

// HandleRerun creates a child run re-processing an earlier run, file, or
// chunk from archived blobs, without refetching from the chain.
func (h *IngestionHandlers) HandleRerun(ctx context.Context, msg queue.Message) error {
	pool := h.pipeline.Pool()

	var parentRunID string
	switch msg.RerunType {
	case "run":
		parentRunID = msg.RerunTargetID
	case "file":
		f, err := pipeline.GetIngestionFile(ctx, pool, msg.RerunTargetID)
		if err != nil {
			return err
		}
		parentRunID = f.RunID
	case "chunk":
		c, err := pipeline.GetChunk(ctx, pool, msg.RerunTargetID)
		if err != nil {
			return err
		}
		parentRunID = c.RunID
	default:
		return fmt.Errorf("rerun message %s has unknown rerun type %q", msg.ID, msg.RerunType)
	}

	var targetDate string
	if parent, err := pipeline.GetRun(ctx, pool, parentRunID); err == nil && parent.TargetDate != nil {
		targetDate = *parent.TargetDate
	}

	runID, err := pipeline.CreateRun(ctx, pool, pipeline.RunOptions{
		ChainSlug:     msg.ChainSlug,
		TargetDate:    targetDate,
		Source:        "rerun",
		ParentRunID:   parentRunID,
		RerunType:     msg.RerunType,
		RerunTargetID: msg.RerunTargetID,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("run_id", runID).
		Str("parent_run_id", parentRunID).
		Str("rerun_type", msg.RerunType).
		Str("target", msg.RerunTargetID).
		Msg("starting rerun")

	switch msg.RerunType {
	case "run":
		files, err := pipeline.GetRunFiles(ctx, pool, parentRunID)
		if err != nil {
			return err
		}
		var replayable []queue.Message
		for i := range files {
			m, ok := h.replayFileMessage(ctx, runID, msg.ChainSlug, &files[i])
			if ok {
				replayable = append(replayable, m)
			}
		}
		if err := pipeline.RecordTotalFiles(ctx, pool, runID, len(replayable)); err != nil {
			return err
		}
		if len(replayable) == 0 {
			return pipeline.MarkRunCompleted(ctx, pool, runID)
		}
		return h.queue.EnqueueBatch(ctx, replayable)

	case "file":
		f, err := pipeline.GetIngestionFile(ctx, pool, msg.RerunTargetID)
		if err != nil {
			return err
		}
		m, ok := h.replayFileMessage(ctx, runID, msg.ChainSlug, f)
		if !ok {
			_ = pipeline.MarkRunFailed(ctx, pool, runID, fmt.Sprintf("archived blob for file %s is gone", f.ID))
			return nil
		}
		if err := pipeline.RecordTotalFiles(ctx, pool, runID, 1); err != nil {
			return err
		}
		return h.queue.Enqueue(ctx, m)

	default: // chunk
		orig, err := pipeline.GetChunk(ctx, pool, msg.RerunTargetID)
		if err != nil {
			return err
		}
		if exists, err := h.store.Exists(ctx, orig.StorageKey); err != nil || !exists {
			_ = pipeline.MarkRunFailed(ctx, pool, runID, fmt.Sprintf("chunk blob %s is gone", orig.StorageKey))
			return err
		}
		origFile, err := pipeline.GetIngestionFile(ctx, pool, orig.FileID)
		if err != nil {
			return err
		}
		if err := pipeline.RecordTotalFiles(ctx, pool, runID, 1); err != nil {
			return err
		}
		df := discoveredFromRecord(origFile)
		fileID, err := pipeline.CreateIngestionFile(ctx, pool, runID, df, intOrZero(origFile.FileSize),
			strOrEmpty(origFile.FileHash), strOrEmpty(origFile.StorageKey), "processing",
			map[string]interface{}{"rerunOf": origFile.ID, "chunk": orig.ID})
		if err != nil {
			return err
		}
		if err := pipeline.SetFileWorkUnits(ctx, pool, fileID, 1); err != nil {
			return err
		}
		chunkID, err := pipeline.CloneChunk(ctx, pool, orig, runID, fileID)
		if err != nil {
			return err
		}
		m := queue.NewMessage(queue.MessagePersistChunk, runID, msg.ChainSlug)
		m.File = &df
		m.FileID = fileID
		m.ChunkID = chunkID
		m.ChunkIndex = orig.ChunkIndex
		return h.queue.Enqueue(ctx, m)
	}
}

// HandleEnrichStore activates an auto-registered store once its location
// details have been filled in.
func (h *IngestionHandlers) HandleEnrichStore(ctx context.Context, msg queue.Message) error {
	if msg.StoreID == "" {
		return fmt.Errorf("enrich_store message %s missing store id", msg.ID)
	}
	tag, err := h.pipeline.Pool().Exec(ctx, `
		UPDATE stores
		SET status = 'active', is_virtual = false, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND address IS NOT NULL AND city IS NOT NULL
	`, msg.StoreID)
	if err != nil {
		return fmt.Errorf("activate store %s: %w", msg.StoreID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Info().Str("store_id", msg.StoreID).Msg("store not eligible for activation yet")
	} else {
		log.Info().Str("store_id", msg.StoreID).Msg("store activated")
	}
	return nil
}

// HandleDeadLetter settles run and file state for a message that exhausted
// its retries. Discover and parse dead letters fail the whole run; the rest
// fail only their file or chunk.
func (h *IngestionHandlers) HandleDeadLetter(ctx context.Context, msg queue.Message, cause string) {
	pool := h.pipeline.Pool()

	switch msg.Type {
	case queue.MessageDiscover, queue.MessageParse, queue.MessageParseChunked:
		if msg.FileID != "" {
			_ = pipeline.MarkFileFailed(ctx, pool, msg.FileID)
		}
		if msg.RunID != "" {
			_ = pipeline.MarkRunFailed(ctx, pool, msg.RunID, cause)
		}
	case queue.MessageFetch:
		if msg.File != nil {
			if fileID, err := pipeline.CreateIngestionFile(ctx, pool, msg.RunID, *msg.File, 0, "", "", "failed",
				map[string]interface{}{"error": cause}); err == nil {
				pipeline.RecordRunError(ctx, pool, msg.RunID, &fileID, "fetch", "http", cause, "error")
			}
		}
		_ = h.finishFile(ctx, msg.RunID)
	case queue.MessageExpand, queue.MessagePersist:
		if msg.FileID != "" {
			pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "expand", "fatal", cause, "critical")
			_ = pipeline.MarkFileFailed(ctx, pool, msg.FileID)
		}
		_ = h.finishFile(ctx, msg.RunID)
	case queue.MessagePersistChunk:
		if msg.ChunkID != "" && msg.FileID != "" {
			pipeline.RecordRunError(ctx, pool, msg.RunID, &msg.FileID, "persist", "fatal", cause, "critical")
			if done, err := pipeline.MarkChunkDone(ctx, pool, msg.ChunkID, msg.FileID, true); err == nil && done {
				_ = h.settleFile(ctx, msg.RunID, msg.FileID)
			}
		}
	}
}

// loadEntry re-reads the archived parent blob and returns the expanded entry
// the message names.
func (h *IngestionHandlers) loadEntry(ctx context.Context, msg queue.Message) (*types.ExpandedFile, error) {
	if msg.File == nil {
		return nil, fmt.Errorf("parse message %s missing file", msg.ID)
	}
	content, err := h.store.Get(ctx, msg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load archived blob %s: %w", msg.StorageKey, err)
	}
	fetchResult := &pipeline.FetchResult{
		StorageKey: msg.StorageKey,
		Hash:       msg.FileHash,
		Content:    content,
		IsZip:      msg.File.Type == types.FileTypeZIP,
	}
	entries, err := h.pipeline.Expand(ctx, msg.ChainSlug, *msg.File, fetchResult)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].InnerFilename == msg.EntryName {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("entry %q not found in %s", msg.EntryName, msg.File.Filename)
}

// finishEntry advances the file's progress after one inline-persisted entry
// and settles the file when every unit is done.
func (h *IngestionHandlers) finishEntry(ctx context.Context, runID, fileID string) error {
	done, err := pipeline.AdvanceFileProgress(ctx, h.pipeline.Pool(), fileID)
	if err != nil {
		return err
	}
	if done {
		return h.settleFile(ctx, runID, fileID)
	}
	return nil
}

// settleFile marks a finished file completed or failed and advances the run.
func (h *IngestionHandlers) settleFile(ctx context.Context, runID, fileID string) error {
	pool := h.pipeline.Pool()
	failed, err := pipeline.FileHasFailedChunks(ctx, pool, fileID)
	if err != nil {
		return err
	}
	if failed {
		_ = pipeline.MarkFileFailed(ctx, pool, fileID)
	} else {
		_ = pipeline.MarkFileCompleted(ctx, pool, fileID)
	}
	return h.finishFile(ctx, runID)
}

// finishFile counts one processed file against the run and checks whether
// the run just reached a terminal state.
func (h *IngestionHandlers) finishFile(ctx context.Context, runID string) error {
	pool := h.pipeline.Pool()
	if err := pipeline.IncrementProcessedFiles(ctx, pool, runID); err != nil {
		return err
	}
	_, err := pipeline.CheckRunCompletion(ctx, pool, runID)
	return err
}

func (h *IngestionHandlers) recordPersistCounters(ctx context.Context, runID, fileID string, counters *pipeline.PersistCounters) {
	pool := h.pipeline.Pool()
	for _, msg := range counters.Errors {
		pipeline.RecordRunError(ctx, pool, runID, &fileID, "persist", "database", msg, "error")
	}
	if len(counters.Errors) > 0 {
		_ = pipeline.AddErrorCount(ctx, pool, runID, len(counters.Errors))
	}
}

// replayFileMessage builds the expand message that replays one archived file
// under a new run. Returns false when the file has no blob to replay.
func (h *IngestionHandlers) replayFileMessage(ctx context.Context, runID, chainSlug string, f *database.IngestionFile) (queue.Message, bool) {
	if f.StorageKey == nil || *f.StorageKey == "" {
		return queue.Message{}, false
	}
	if exists, err := h.store.Exists(ctx, *f.StorageKey); err != nil || !exists {
		log.Warn().Str("file_id", f.ID).Str("storage_key", *f.StorageKey).Msg("archived blob is gone, skipping replay")
		return queue.Message{}, false
	}

	pool := h.pipeline.Pool()
	df := discoveredFromRecord(f)
	fileID, err := pipeline.CreateIngestionFile(ctx, pool, runID, df, intOrZero(f.FileSize),
		strOrEmpty(f.FileHash), *f.StorageKey, "processing",
		map[string]interface{}{"rerunOf": f.ID})
	if err != nil {
		log.Error().Err(err).Str("file_id", f.ID).Msg("failed to create replay file record")
		return queue.Message{}, false
	}

	m := queue.NewMessage(queue.MessageExpand, runID, chainSlug)
	m.File = &df
	m.FileID = fileID
	m.StorageKey = *f.StorageKey
	m.FileHash = strOrEmpty(f.FileHash)
	return m, true
}

func discoveredFromRecord(f *database.IngestionFile) types.DiscoveredFile {
	return types.DiscoveredFile{
		Filename: f.Filename,
		Type:     types.FileType(f.FileType),
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
