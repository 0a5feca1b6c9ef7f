package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
)

var (
	ingestDate  string
	ingestAll   bool
	ingestStore string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:     "run <chain>",
	Aliases: []string{"ingest"},
	Short:   "Run the full ingestion pipeline for a chain",
	Long: `Run the complete ingestion pipeline (discover, fetch, expand, parse, persist)
for a retail chain in one process. The pipeline discovers published files,
downloads and archives them, expands ZIPs, parses the content, and persists
the normalized price data.

Use --all to ingest every supported chain in sequence.`,
	Example: `  price-service run konzum
  price-service run lidl --date 2026-01-19
  price-service run konzum -s 0613
  price-service run --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "Target date for discovery (format: YYYY-MM-DD, defaults to today)")
	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "Ingest all chains")
	ingestCmd.Flags().StringVarP(&ingestStore, "store", "s", "", "Only process files for this store identifier")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var chains []config.ChainID
	if ingestAll {
		chains = config.ChainIDs
		logger.Info().Msgf("Ingesting all %d chains", len(chains))
	} else {
		if len(args) == 0 {
			return fmt.Errorf("either specify <chain> or use --all flag")
		}
		chainID := args[0]
		if !config.IsValidChainID(chainID) {
			return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", chainID, strings.Join(validChains(), ", "))
		}
		chains = []config.ChainID{config.ChainID(chainID)}
	}

	if err := registry.InitializeDefaultAdapters(); err != nil {
		return fmt.Errorf("failed to initialize chain registry: %w", err)
	}

	store, storeType, err := buildStorage(ctx)
	if err != nil {
		return err
	}
	p := pipeline.New(database.Pool(), store, storeType)

	summaries := make([]*pipeline.Summary, 0, len(chains))
	fatal := false
	for _, chainID := range chains {
		summary, err := p.Run(ctx, pipeline.RunOptions{
			ChainSlug:   string(chainID),
			TargetDate:  ingestDate,
			Source:      "cli",
			StoreFilter: ingestStore,
		})
		if err != nil {
			logger.Error().Str("chain", string(chainID)).Err(err).Msg("Ingestion failed")
			fatal = true
			continue
		}
		summaries = append(summaries, summary)
	}

	displayIngestResults(summaries)

	if fatal {
		return fmt.Errorf("some ingestions failed")
	}
	for _, s := range summaries {
		if !s.Success() {
			// The run finished but some files or rows failed.
			exitCode = 2
			break
		}
	}
	return nil
}

func displayIngestResults(summaries []*pipeline.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tRUN ID\tFILES\tDUPS\tROWS\tPERSISTED\tCHANGES\tUNCHANGED\tFAILED\tERRORS")
	fmt.Fprintln(w, "-----\t------\t-----\t----\t----\t---------\t-------\t---------\t------\t------")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.ChainSlug, s.RunID, s.Discovered, s.SkippedDuplicate, s.ValidRows,
			s.Persisted, s.PriceChanges, s.Unchanged, s.Failed, len(s.Errors))
	}
	w.Flush()

	for _, s := range summaries {
		if len(s.Errors) == 0 {
			continue
		}
		fmt.Printf("\nErrors for %s (first %d of %d):\n", s.ChainSlug, min(len(s.Errors), 10), len(s.Errors))
		for i, msg := range s.Errors {
			if i >= 10 {
				break
			}
			fmt.Printf("  - %s\n", msg)
		}
	}
}

func validChains() []string {
	chains := make([]string, len(config.ChainIDs))
	for i, c := range config.ChainIDs {
		chains[i] = string(c)
	}
	return chains
}
