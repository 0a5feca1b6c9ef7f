package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damir5/kosarica-sub000/internal/adapters/base"
	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/types"
)

func getAdapter(t *testing.T, chain config.ChainID) base.ChainAdapter {
	t.Helper()
	require.NoError(t, registry.InitializeDefaultAdapters())
	adapter, err := registry.GetAdapter(chain)
	require.NoError(t, err)
	return adapter
}

// TestStoreIdentifierExtraction covers the per-chain filename conventions the
// adapters have to decode to attribute rows to physical stores.
func TestStoreIdentifierExtraction(t *testing.T) {
	tests := []struct {
		name         string
		chain        config.ChainID
		filename     string
		expectedType string
		expectedID   string
	}{
		{
			name:         "Konzum four digit code between commas",
			chain:        config.ChainKonzum,
			filename:     "SUPERMARKET,ILICA+10+10000+ZAGREB,0613,15.01.2026,7-30.csv",
			expectedType: "filename_code",
			expectedID:   "0613",
		},
		{
			name:         "KTC PJ code before datetime suffix",
			chain:        config.ChainKtc,
			filename:     "TRGOVINA-KOPRIVNICKA 1 KRIZEVCI-PJ50-1-15012026-073000.csv",
			expectedType: "filename_code",
			expectedID:   "PJ50-1",
		},
		{
			name:         "Metro S-code as portal identifier",
			chain:        config.ChainMetro,
			filename:     "Cjenik_S10_Jankomir_15.01.2026.csv",
			expectedType: "portal_id",
			expectedID:   "S10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := getAdapter(t, tt.chain)

			id := adapter.ExtractStoreIdentifier(types.DiscoveredFile{Filename: tt.filename})
			require.NotNil(t, id)
			assert.Equal(t, tt.expectedType, id.Type)
			assert.Equal(t, tt.expectedID, id.Value)
		})
	}
}

// TestKonzumStoreMetadata checks address parsing out of Konzum's
// plus-encoded filename segment.
func TestKonzumStoreMetadata(t *testing.T) {
	adapter := getAdapter(t, config.ChainKonzum)

	metadata := adapter.ExtractStoreMetadata(types.DiscoveredFile{
		Filename: "SUPERMARKET,ZITNA+1A+10310+IVANIC+GRAD,0204,15.01.2026,7-30.csv",
	})
	require.NotNil(t, metadata)
	assert.Equal(t, "10310", metadata.PostalCode)
	assert.Contains(t, metadata.Address, "ZITNA")
	assert.Contains(t, metadata.City, "IVANIC")
}

// TestKonzumCSVParsing runs a realistic Croatian-header CSV through the
// Konzum adapter.
func TestKonzumCSVParsing(t *testing.T) {
	adapter := getAdapter(t, config.ChainKonzum)

	content := []byte("ŠIFRA PROIZVODA,NAZIV PROIZVODA,MALOPRODAJNA CIJENA,BARKOD\n" +
		"001,Jabuka Idared,1.29,3850101000010\n" +
		"002,Kruh polubijeli,0.99,3850101000027\n")

	result, err := adapter.Parse(content, "SUPERMARKET,ZAGREB,0019,15.01.2026,7-30.csv", &types.ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ValidRows)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Jabuka Idared", result.Rows[0].Name)
	assert.Equal(t, 129, result.Rows[0].Price)
	assert.Equal(t, []string{"3850101000010"}, result.Rows[0].Barcodes)
}

// TestLidlMultipleGTINResplit verifies the Lidl post-processing step that
// splits a single barcode cell holding several GTINs.
func TestLidlMultipleGTINResplit(t *testing.T) {
	adapter := getAdapter(t, config.ChainLidl)

	content := []byte("ŠIFRA,NAZIV,MALOPRODAJNA_CIJENA,BARKOD\n" +
		"100,Sok naranča,1.49,3850101000010|3850101000027\n")

	result, err := adapter.Parse(content, "Lidl_2026-01-15_265.csv", &types.ParseOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, result.ValidRows)
	assert.Equal(t, []string{"3850101000010", "3850101000027"}, result.Rows[0].Barcodes)
}

// TestAdapterRegistryCoversAllChains ensures every configured chain has a
// working adapter.
func TestAdapterRegistryCoversAllChains(t *testing.T) {
	require.NoError(t, registry.InitializeDefaultAdapters())

	for _, chainID := range config.ChainIDs {
		t.Run(string(chainID), func(t *testing.T) {
			adapter, err := registry.GetAdapter(chainID)
			require.NoError(t, err)
			assert.Equal(t, string(chainID), adapter.Slug())
			assert.NotEmpty(t, adapter.SupportedTypes())
		})
	}
}
