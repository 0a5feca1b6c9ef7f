package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/damir5/kosarica-sub000/internal/types"
)

// codeAdapter resolves store identifiers from a filename prefix, enough to
// exercise discovery filtering without a portal.
type codeAdapter struct{}

func (codeAdapter) Slug() string                    { return "konzum" }
func (codeAdapter) Name() string                    { return "Konzum" }
func (codeAdapter) SupportedTypes() []types.FileType { return []types.FileType{types.FileTypeCSV} }
func (codeAdapter) Discover(string) ([]types.DiscoveredFile, error) { return nil, nil }
func (codeAdapter) Fetch(types.DiscoveredFile) (*types.FetchedFile, error) { return nil, nil }
func (codeAdapter) Parse([]byte, string, *types.ParseOptions) (*types.ParseResult, error) {
	return nil, nil
}
func (codeAdapter) ExtractStoreIdentifier(file types.DiscoveredFile) *types.StoreIdentifier {
	if len(file.Filename) < 4 {
		return nil
	}
	return &types.StoreIdentifier{Type: "filename_code", Value: file.Filename[:4]}
}
func (codeAdapter) ValidateRow(types.NormalizedRow) types.NormalizedRowValidation {
	return types.NormalizedRowValidation{IsValid: true}
}
func (codeAdapter) ExtractStoreMetadata(types.DiscoveredFile) *types.StoreMetadata { return nil }

func datedFile(name, portalDate string) types.DiscoveredFile {
	f := types.DiscoveredFile{URL: "https://example.test/" + name, Filename: name, Type: types.FileTypeCSV}
	if portalDate != "" {
		f.Metadata = map[string]string{"portalDate": portalDate}
	}
	return f
}

func TestFilterByDate(t *testing.T) {
	t.Run("drops files for another date", func(t *testing.T) {
		files := []types.DiscoveredFile{
			datedFile("0613_a.csv", "2026-01-15"),
			datedFile("0613_b.csv", "2026-01-14"),
			datedFile("0613_c.csv", ""),
		}

		kept := filterByDate(files, "2026-01-15")
		assert.Len(t, kept, 2)
		assert.Equal(t, "0613_a.csv", kept[0].Filename)
		assert.Equal(t, "0613_c.csv", kept[1].Filename, "undated files are kept")
	})

	t.Run("undated listing passes through", func(t *testing.T) {
		files := []types.DiscoveredFile{
			datedFile("0613_a.csv", ""),
			datedFile("0614_b.csv", ""),
		}

		kept := filterByDate(files, "2026-01-15")
		assert.Len(t, kept, 2)
	})
}

func TestFilterByStore(t *testing.T) {
	files := []types.DiscoveredFile{
		datedFile("0613_cjenik.csv", ""),
		datedFile("0907_cjenik.csv", ""),
		datedFile("0613_akcija.csv", ""),
	}

	kept := filterByStore(codeAdapter{}, files, "0613")
	assert.Len(t, kept, 2)
	for _, f := range kept {
		assert.Equal(t, "0613", f.Filename[:4])
	}
}
