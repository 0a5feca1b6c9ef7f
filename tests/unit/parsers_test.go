package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damir5/kosarica-sub000/internal/parsers/charset"
	"github.com/damir5/kosarica-sub000/internal/parsers/csv"
	"github.com/damir5/kosarica-sub000/internal/parsers/xml"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// TestEncodingDetection tests encoding detection for Croatian characters
func TestEncodingDetection(t *testing.T) {
	tests := []struct {
		name        string
		content     []byte
		expectedEnc charset.Encoding
	}{
		{
			name:        "Windows-1250 with Croatian chars",
			content:     []byte{'M', 'l', 'i', 'j', 'e', 'k', 'o', ' ', 0x8A, 0x9A, 0xD0, 0xF0}, // Š, š, Đ, đ
			expectedEnc: charset.EncodingWindows1250,
		},
		{
			name:        "UTF-8 BOM",
			content:     []byte{0xEF, 0xBB, 0xBF, 'H', 'e', 'l', 'l', 'o'},
			expectedEnc: charset.EncodingUTF8,
		},
		{
			name:        "Plain ASCII defaults to UTF-8",
			content:     []byte("Hello, World!"),
			expectedEnc: charset.EncodingUTF8,
		},
		{
			name:        "Valid UTF-8 Croatian",
			content:     []byte("Mlijeko švicarsko"),
			expectedEnc: charset.EncodingUTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := charset.DetectEncoding(tt.content)
			assert.Equal(t, tt.expectedEnc, enc)
		})
	}
}

// TestWindows1250Decode tests decoding of Windows-1250 content to UTF-8
func TestWindows1250Decode(t *testing.T) {
	// "Škola đ" in Windows-1250
	content := []byte{0x8A, 'k', 'o', 'l', 'a', ' ', 0xF0}

	decoded, err := charset.Decode(content, charset.EncodingWindows1250)
	require.NoError(t, err)
	assert.Equal(t, "Škola đ", decoded)
}

// TestDecodePassthroughUTF8 verifies that already-valid UTF-8 passes through
// even when the declared encoding is Windows-1250.
func TestDecodePassthroughUTF8(t *testing.T) {
	content := []byte("Cjenik Đakovo")

	decoded, err := charset.Decode(content, charset.EncodingWindows1250)
	require.NoError(t, err)
	assert.Equal(t, "Cjenik Đakovo", decoded)
}

// TestCSVDelimiterDetection tests automatic delimiter detection
func TestCSVDelimiterDetection(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectedDel csv.CsvDelimiter
	}{
		{
			name:        "Comma delimiter",
			content:     "name,price,quantity\nApple,100,5",
			expectedDel: csv.DelimiterComma,
		},
		{
			name:        "Semicolon delimiter",
			content:     "name;price;quantity\nApple;100;5",
			expectedDel: csv.DelimiterSemicolon,
		},
		{
			name:        "Tab delimiter",
			content:     "name\tprice\tquantity\nApple\t100\t5",
			expectedDel: csv.DelimiterTab,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			del := csv.DetectDelimiter(tt.content)
			assert.Equal(t, tt.expectedDel, del)
		})
	}
}

// TestEuropeanPriceFormat tests European price format parsing to cents
func TestEuropeanPriceFormat(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedCents int
		expectError   bool
	}{
		{
			name:          "European format 1.234,56",
			input:         "1.234,56",
			expectedCents: 123456,
		},
		{
			name:          "European format 123,45",
			input:         "123,45",
			expectedCents: 12345,
		},
		{
			name:          "US format 123.45",
			input:         "123.45",
			expectedCents: 12345,
		},
		{
			name:          "Integer 100",
			input:         "100",
			expectedCents: 10000,
		},
		{
			name:          "Currency suffix 12,99 EUR",
			input:         "12,99 EUR",
			expectedCents: 1299,
		},
		{
			name:          "Bare decimal ,69",
			input:         ",69",
			expectedCents: 69,
		},
		{
			name:          "No float drift 7,90",
			input:         "7,90",
			expectedCents: 790,
		},
		{
			name:          "Third fractional digit rounds 1,235",
			input:         "1,235",
			expectedCents: 124,
		},
		{
			name:          "Negative correction -0,50",
			input:         "-0,50",
			expectedCents: -50,
		},
		{
			name:        "Invalid empty",
			input:       "",
			expectError: true,
		},
		{
			name:        "Invalid letters",
			input:       "abc",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cents, err := csv.ParsePrice(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedCents, cents)
			}
		})
	}
}

// TestCSVHeaderMapping tests column resolution by header name
func TestCSVHeaderMapping(t *testing.T) {
	parser := csv.NewParser(csv.CsvParserOptions{
		Delimiter: csv.DelimiterSemicolon,
		HasHeader: true,
		ColumnMapping: &csv.CsvColumnMapping{
			Name:  "naziv",
			Price: "cijena",
		},
		SkipEmptyRows: true,
		QuoteChar:     '"',
	})

	content := "naziv;cijena\nJabuka;1,29\nKruh;0,99"
	result, err := parser.Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, 2, result.ValidRows)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Jabuka", result.Rows[0].Name)
	assert.Equal(t, 129, result.Rows[0].Price)
	assert.Equal(t, "Kruh", result.Rows[1].Name)
	assert.Equal(t, 99, result.Rows[1].Price)
}

// TestCSVFuzzyHeaderMatch tests diacritic-insensitive header matching
func TestCSVFuzzyHeaderMatch(t *testing.T) {
	parser := csv.NewParser(csv.CsvParserOptions{
		Delimiter: csv.DelimiterSemicolon,
		HasHeader: true,
		ColumnMapping: &csv.CsvColumnMapping{
			Name:  "naziv proizvoda",
			Price: "cijena",
		},
		SkipEmptyRows: true,
		QuoteChar:     '"',
	})

	// Header carries diacritics; mapping does not
	content := "NAZIV PROIZVODA;CIJENA\nMlijeko;1,05"
	result, err := parser.Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ValidRows)
}

// TestCSVAlternativeMappingFallback tests fallback when the primary column
// mapping matches no rows.
func TestCSVAlternativeMappingFallback(t *testing.T) {
	parser := csv.NewParser(csv.CsvParserOptions{
		Delimiter: csv.DelimiterComma,
		HasHeader: true,
		ColumnMapping: &csv.CsvColumnMapping{
			Name:  "name",
			Price: "price",
		},
		SkipEmptyRows: true,
		QuoteChar:     '"',
	})
	parser.SetAlternativeMapping(&csv.CsvColumnMapping{
		Name:  "naziv",
		Price: "cijena",
	})

	content := "naziv,cijena\nJabuka,100"
	result, err := parser.Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ValidRows)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Jabuka", result.Rows[0].Name)
}

// TestCSVNumericColumnIndices tests position-based column mapping
func TestCSVNumericColumnIndices(t *testing.T) {
	parser := csv.NewParser(csv.CsvParserOptions{
		Delimiter: csv.DelimiterSemicolon,
		HasHeader: true,
		ColumnMapping: &csv.CsvColumnMapping{
			Name:     "0",
			Price:    "1",
			Barcodes: types.StringPtr("2"),
		},
		SkipEmptyRows: true,
		QuoteChar:     '"',
	})

	content := "a;b;c\nJabuka;2,49;3850102000019"
	result, err := parser.Parse([]byte(content))
	require.NoError(t, err)

	require.Equal(t, 1, result.ValidRows)
	assert.Equal(t, 249, result.Rows[0].Price)
	assert.Equal(t, []string{"3850102000019"}, result.Rows[0].Barcodes)
}

// TestXMLItemPaths tests various XML item path structures
func TestXMLItemPaths(t *testing.T) {
	tests := []struct {
		name     string
		xml      string
		itemPath string
		expected int
	}{
		{
			name:     "products.product path",
			xml:      `<products><product><name>Apple</name><price>1,00</price></product></products>`,
			itemPath: "products.product",
			expected: 1,
		},
		{
			name:     "Nested root.items.item path",
			xml:      `<root><items><item><name>Apple</name><price>1,00</price></item></items></root>`,
			itemPath: "root.items.item",
			expected: 1,
		},
		{
			name: "Repeated items",
			xml: `<products>` +
				`<product><name>Apple</name><price>1,00</price></product>` +
				`<product><name>Pear</name><price>2,00</price></product>` +
				`</products>`,
			itemPath: "products.product",
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := xml.NewParser(xml.XmlParserOptions{
				ItemsPath: tt.itemPath,
				FieldMapping: xml.XmlFieldMapping{
					Name:  "name",
					Price: "price",
				},
			})

			result, err := parser.Parse([]byte(tt.xml))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.ValidRows)
		})
	}
}

// TestXMLBarcodeSplitting verifies multi-GTIN fields split into separate
// barcodes.
func TestXMLBarcodeSplitting(t *testing.T) {
	content := `<products><product>` +
		`<name>Sok</name><price>1,49</price>` +
		`<gtin>3850101000010;3850101000027</gtin>` +
		`</product></products>`

	parser := xml.NewParser(xml.XmlParserOptions{
		ItemsPath: "products.product",
		FieldMapping: xml.XmlFieldMapping{
			Name:     "name",
			Price:    "price",
			Barcodes: types.StringPtr("gtin"),
		},
	})

	result, err := parser.Parse([]byte(content))
	require.NoError(t, err)
	require.Equal(t, 1, result.ValidRows)
	assert.Equal(t, []string{"3850101000010", "3850101000027"}, result.Rows[0].Barcodes)
}

// TestXMLEncodingDeclaration tests that the parser honors the XML encoding
// declaration for Windows-1250 documents.
func TestXMLEncodingDeclaration(t *testing.T) {
	header := `<?xml version="1.0" encoding="windows-1250"?>`
	// "Đakovo" with Windows-1250 Đ (0xD0)
	body := append([]byte(header+`<products><product><name>`), 0xD0)
	body = append(body, []byte(`akovo</name><price>1,00</price></product></products>`)...)

	parser := xml.NewParser(xml.XmlParserOptions{
		ItemsPath: "products.product",
		FieldMapping: xml.XmlFieldMapping{
			Name:  "name",
			Price: "price",
		},
	})

	result, err := parser.Parse(body)
	require.NoError(t, err)
	require.Equal(t, 1, result.ValidRows)
	assert.Equal(t, "Đakovo", result.Rows[0].Name)
}
