package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/types"
)

var (
	fetchChain string
	fetchURL   string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and archive a single file",
	Long: `Download one file through a chain's adapter, archive it in blob storage,
and record it in the archives table. The URL may also be a filesystem path
or a file:// URL, which reads the file locally instead of downloading.

A file whose content hash is already archived is reported as a duplicate
and not stored again.`,
	Example: `  price-service fetch -c konzum -u https://www.konzum.hr/cjenici/cjenik.csv
  price-service fetch -c lidl -u ./fixtures/Popis_cjenika.zip`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchChain, "chain", "c", "", "Chain slug (required)")
	fetchCmd.Flags().StringVarP(&fetchURL, "url", "u", "", "File URL or local path (required)")
	fetchCmd.MarkFlagRequired("chain")
	fetchCmd.MarkFlagRequired("url")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if !config.IsValidChainID(fetchChain) {
		return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", fetchChain, strings.Join(validChains(), ", "))
	}

	if err := registry.InitializeDefaultAdapters(); err != nil {
		return fmt.Errorf("failed to initialize chain registry: %w", err)
	}
	adapter, err := registry.GetAdapter(config.ChainID(fetchChain))
	if err != nil {
		return fmt.Errorf("failed to get adapter for %s: %w", fetchChain, err)
	}

	ctx := context.Background()
	store, storeType, err := buildStorage(ctx)
	if err != nil {
		return err
	}
	p := pipeline.New(database.Pool(), store, storeType)

	file, err := discoveredFileFromURL(fetchURL)
	if err != nil {
		return err
	}

	res, err := p.Fetch(ctx, adapter, file)
	if err != nil {
		return err
	}

	if res.Duplicate {
		fmt.Printf("duplicate\t%s\t%s\n", res.ArchiveID, res.Hash)
		return nil
	}
	fmt.Printf("archived\t%s\t%s\t%d bytes\t%s\n", res.ArchiveID, res.StorageKey, len(res.Content), res.Hash)
	return nil
}

// discoveredFileFromURL builds the discovery record the fetch phase expects.
// Plain filesystem paths become file:// URLs.
func discoveredFileFromURL(raw string) (types.DiscoveredFile, error) {
	url := raw
	if !strings.Contains(url, "://") {
		abs, err := filepath.Abs(url)
		if err != nil {
			return types.DiscoveredFile{}, fmt.Errorf("resolve path %s: %w", raw, err)
		}
		url = "file://" + abs
	}

	filename := path.Base(strings.TrimPrefix(url, "file://"))
	if idx := strings.IndexAny(filename, "?#"); idx >= 0 {
		filename = filename[:idx]
	}
	if filename == "" || filename == "." || filename == "/" {
		return types.DiscoveredFile{}, fmt.Errorf("cannot derive a filename from %s", raw)
	}

	fileType := types.FileTypeCSV
	switch strings.ToLower(path.Ext(filename)) {
	case ".xml":
		fileType = types.FileTypeXML
	case ".xlsx", ".xls":
		fileType = types.FileTypeXLSX
	case ".zip":
		fileType = types.FileTypeZIP
	}

	return types.DiscoveredFile{
		URL:      url,
		Filename: filename,
		Type:     fileType,
	}, nil
}
