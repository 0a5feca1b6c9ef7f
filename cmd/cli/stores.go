package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/stores"
)

var (
	storesChain   string
	storesStatus  string
	storesVirtual bool
	storesLimit   int

	addVirtualName       string
	addVirtualIdentType  string
	addVirtualIdentValue string
)

// storesCmd groups the store administration subcommands.
var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage registered stores",
	Long: `Manage stores known to the system, including virtual stores that were
auto-registered during ingestion and still await review. Virtual stores
start out as pending; approve or reject them once checked, or create
them up front and link physical stores to the price list they follow.`,
	Example: `  price-service stores list --chain konzum --status pending
  price-service stores approve store_abc123
  price-service stores add-virtual lidl --name "Lidl nacionalni cjenik" --identifier-type national --identifier-value lidl
  price-service stores link store_physical store_virtual
  price-service stores import konzum stores.csv`,
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered stores",
	RunE:  runStoresList,
}

var storesApproveCmd = &cobra.Command{
	Use:   "approve <store-id>",
	Short: "Mark a pending store active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := stores.NewService(database.Pool())
		if err := svc.Approve(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Store %s approved\n", args[0])
		return nil
	},
}

var storesRejectCmd = &cobra.Command{
	Use:   "reject <store-id>",
	Short: "Mark a store rejected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := stores.NewService(database.Pool())
		if err := svc.Reject(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Store %s rejected\n", args[0])
		return nil
	},
}

var storesAddVirtualCmd = &cobra.Command{
	Use:   "add-virtual <chain>",
	Short: "Create an active virtual store",
	Long: `Create a virtual store representing a pricing zone rather than a
physical location, such as a chain's single national price list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainSlug := args[0]
		if !config.IsValidChainID(chainSlug) {
			return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", chainSlug, strings.Join(validChains(), ", "))
		}
		if addVirtualName == "" {
			return fmt.Errorf("--name is required")
		}
		svc := stores.NewService(database.Pool())
		id, err := svc.AddVirtual(context.Background(), chainSlug, addVirtualName, addVirtualIdentType, addVirtualIdentValue)
		if err != nil {
			return err
		}
		fmt.Printf("Created virtual store %s\n", id)
		return nil
	},
}

var storesLinkCmd = &cobra.Command{
	Use:   "link <physical-store-id> <virtual-store-id>",
	Short: "Link a physical store to its virtual price source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := stores.NewService(database.Pool())
		if err := svc.LinkPriceSource(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Store %s now follows prices of %s\n", args[0], args[1])
		return nil
	},
}

var storesImportCmd = &cobra.Command{
	Use:   "import <chain> <csv-file>",
	Short: "Bulk-import physical stores from a CSV file",
	Long: `Import stores from a CSV file with a name,code,address,city,postal_code
header. Each code becomes the store's filename_code identifier; rows
whose code already resolves to a store are skipped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainSlug := args[0]
		if !config.IsValidChainID(chainSlug) {
			return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", chainSlug, strings.Join(validChains(), ", "))
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()

		svc := stores.NewService(database.Pool())
		created, err := svc.ImportCSV(context.Background(), chainSlug, f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d store(s)\n", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storesCmd)
	storesCmd.AddCommand(storesListCmd, storesApproveCmd, storesRejectCmd,
		storesAddVirtualCmd, storesLinkCmd, storesImportCmd)

	storesListCmd.Flags().StringVar(&storesChain, "chain", "", "Filter by chain slug")
	storesListCmd.Flags().StringVar(&storesStatus, "status", "", "Filter by status (pending, active, rejected)")
	storesListCmd.Flags().BoolVar(&storesVirtual, "virtual", false, "Only auto-registered (virtual) stores")
	storesListCmd.Flags().IntVar(&storesLimit, "limit", 100, "Maximum rows to print")

	storesAddVirtualCmd.Flags().StringVar(&addVirtualName, "name", "", "Display name for the virtual store")
	storesAddVirtualCmd.Flags().StringVar(&addVirtualIdentType, "identifier-type", "", "Optional identifier type (e.g. national)")
	storesAddVirtualCmd.Flags().StringVar(&addVirtualIdentValue, "identifier-value", "", "Optional identifier value")
}

func runStoresList(cmd *cobra.Command, args []string) error {
	if storesChain != "" && !config.IsValidChainID(storesChain) {
		return fmt.Errorf("invalid chain ID: %s\nValid chains: %s", storesChain, strings.Join(validChains(), ", "))
	}

	svc := stores.NewService(database.Pool())
	list, err := svc.List(context.Background(), stores.ListFilter{
		ChainSlug:   storesChain,
		Status:      storesStatus,
		VirtualOnly: storesVirtual,
		Limit:       storesLimit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHAIN\tNAME\tCODE\tCITY\tVIRTUAL\tSTATUS")
	for _, st := range list {
		city := ""
		if st.City != nil {
			city = *st.City
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%s\n", st.ID, st.ChainSlug, st.Name, st.Identifier, city, st.IsVirtual, st.Status)
	}
	w.Flush()
	fmt.Printf("\n%d store(s)\n", len(list))
	return nil
}
