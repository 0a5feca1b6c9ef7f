package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/persist"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// UnresolvedStore describes a store group whose identifier matched no known
// store, so its rows were dropped.
type UnresolvedStore struct {
	Identifier     string `json:"identifier"`
	IdentifierType string `json:"identifierType"`
	Rows           int    `json:"rows"`
}

// PersistCounters aggregates persist results across stores and entries.
type PersistCounters struct {
	Persisted      int
	PriceChanges   int
	Unchanged      int
	Failed         int
	Errors         []string
	StoresNotFound []UnresolvedStore
}

func (c *PersistCounters) add(res *persist.Result) {
	c.Persisted += res.Persisted
	c.PriceChanges += res.PriceChanges
	c.Unchanged += res.Unchanged
	c.Failed += res.Failed
	c.Errors = append(c.Errors, res.Errors...)
}

// PersistEntry writes one parsed entry's store groups through the persistence
// engine. Store groups that fail to resolve or persist are recorded and do
// not abort the remaining groups.
func (p *Pipeline) PersistEntry(ctx context.Context, adapter registry.ChainAdapter, entry types.ExpandedFile, parsed *EntryParseResult) *PersistCounters {
	chainSlug := adapter.Slug()
	counters := &PersistCounters{}

	entryFile := types.DiscoveredFile{
		URL:      entry.Parent.URL,
		Filename: entry.InnerFilename,
		Type:     entry.Type,
	}

	identType := "filename_code"
	if ident := adapter.ExtractStoreIdentifier(entryFile); ident != nil && ident.Type != "" {
		identType = ident.Type
	}
	metadata := adapter.ExtractStoreMetadata(entryFile)

	for storeIdentifier, rows := range parsed.RowsByStore {
		opts := persist.Options{
			IdentifierType: identType,
			AutoRegister:   true,
			Metadata:       metadata,
		}
		if storeIdentifier == "unknown" {
			opts.IdentifierType = persist.IdentifierTypeUnresolved
			opts.AutoRegister = false
		}

		res, err := p.engine.PersistStoreRows(ctx, chainSlug, storeIdentifier, rows, opts)
		if err != nil {
			counters.Failed += len(rows)
			msg := fmt.Sprintf("store %s: %v", storeIdentifier, err)
			counters.Errors = append(counters.Errors, msg)
			if errors.Is(err, persist.ErrStoreNotFound) {
				counters.StoresNotFound = append(counters.StoresNotFound, UnresolvedStore{
					Identifier:     storeIdentifier,
					IdentifierType: opts.IdentifierType,
					Rows:           len(rows),
				})
				log.Warn().
					Str("chain", chainSlug).
					Str("store_identifier", storeIdentifier).
					Msg("store unresolved, rows dropped")
			} else {
				log.Error().Err(err).
					Str("chain", chainSlug).
					Str("store_identifier", storeIdentifier).
					Msg("persist failed for store")
			}
			continue
		}
		counters.add(res)
	}

	rowsPersisted.WithLabelValues(chainSlug).Add(float64(counters.Persisted))
	priceChanges.WithLabelValues(chainSlug).Add(float64(counters.PriceChanges))

	return counters
}
