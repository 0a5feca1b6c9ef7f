package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	zipexpand "github.com/damir5/kosarica-sub000/internal/ingestion/zip"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// Expand turns one fetched file into its parse entries. ZIP archives fan out
// into one entry per inner file (junk entries like __MACOSX dropped); other
// formats pass through as a single entry.
func (p *Pipeline) Expand(ctx context.Context, chainSlug string, file types.DiscoveredFile, fetchResult *FetchResult) ([]types.ExpandedFile, error) {
	if !fetchResult.IsZip {
		return []types.ExpandedFile{{
			Parent:        file,
			InnerFilename: file.Filename,
			Type:          file.Type,
			Content:       fetchResult.Content,
			Hash:          fetchResult.Hash,
		}}, nil
	}

	expander := zipexpand.NewExpander(p.store, zipexpand.DefaultExpandOptions())
	expanded, err := expander.ExpandAndStore(ctx, fetchResult.Content, chainSlug, time.Now(), file.Filename)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", file.Filename, err)
	}

	entries := zipexpand.ConvertToTypesExpandedFiles(file, expanded)

	log.Info().
		Str("chain", chainSlug).
		Str("filename", file.Filename).
		Int("entries", len(entries)).
		Msg("expanded archive")

	return entries, nil
}
