package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// Discover asks the chain adapter for the files published on targetDate
// (YYYY-MM-DD, empty means today). Files reporting a different portal date
// are dropped; when storeFilter is set, only files resolving to that store
// identifier survive.
func (p *Pipeline) Discover(adapter registry.ChainAdapter, targetDate, storeFilter string) ([]types.DiscoveredFile, error) {
	if targetDate == "" {
		targetDate = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		return nil, fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}

	files, err := adapter.Discover(targetDate)
	if err != nil {
		return nil, fmt.Errorf("discovery for %s: %w", adapter.Slug(), err)
	}

	discovered := len(files)
	files = filterByDate(files, targetDate)
	if dropped := discovered - len(files); dropped > 0 {
		log.Debug().
			Str("chain", adapter.Slug()).
			Str("target_date", targetDate).
			Int("dropped", dropped).
			Msg("dropped files published for a different date")
	}

	if storeFilter != "" {
		files = filterByStore(adapter, files, storeFilter)
	}

	log.Info().
		Str("chain", adapter.Slug()).
		Str("target_date", targetDate).
		Str("store_filter", storeFilter).
		Int("files", len(files)).
		Msg("discovery complete")

	return files, nil
}

// reportedDate returns the YYYY-MM-DD date a discovered file claims to be
// published for, or "" when the portal does not say.
func reportedDate(f types.DiscoveredFile) string {
	return f.Metadata["portalDate"]
}

// filterByDate drops files whose reported date differs from targetDate. A
// listing where no file reports a date passes through unchanged, and files
// without a date are never dropped.
func filterByDate(files []types.DiscoveredFile, targetDate string) []types.DiscoveredFile {
	anyDated := false
	for _, f := range files {
		if reportedDate(f) != "" {
			anyDated = true
			break
		}
	}
	if !anyDated {
		return files
	}

	kept := make([]types.DiscoveredFile, 0, len(files))
	for _, f := range files {
		if d := reportedDate(f); d == "" || d == targetDate {
			kept = append(kept, f)
		}
	}
	return kept
}

// filterByStore keeps only files whose extracted store identifier matches.
func filterByStore(adapter registry.ChainAdapter, files []types.DiscoveredFile, storeFilter string) []types.DiscoveredFile {
	kept := make([]types.DiscoveredFile, 0, len(files))
	for _, f := range files {
		ident := adapter.ExtractStoreIdentifier(f)
		if ident != nil && ident.Value == storeFilter {
			kept = append(kept, f)
		}
	}
	return kept
}
