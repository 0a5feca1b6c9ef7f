package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/damir5/kosarica-sub000/internal/types"
)

func baseRow() types.NormalizedRow {
	return types.NormalizedRow{
		Name:  "Mlijeko 2.8% 1L",
		Price: 129,
	}
}

// TestPriceSignatureDeterminism verifies identical price fields always hash
// to the same value, regardless of non-price fields.
func TestPriceSignatureDeterminism(t *testing.T) {
	row1 := baseRow()
	row2 := baseRow()
	row2.Name = "Different name"
	row2.Brand = types.StringPtr("Dukat")
	row2.Description = types.StringPtr("changed description")
	row2.Barcodes = []string{"3850102000012"}
	row2.RowNumber = 42

	assert.Equal(t, ComputePriceSignature(row1), ComputePriceSignature(row2),
		"non-price fields must not affect the signature")
}

func TestPriceSignatureSensitivity(t *testing.T) {
	discountStart := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*types.NormalizedRow)
	}{
		{"price", func(r *types.NormalizedRow) { r.Price = 130 }},
		{"discount price", func(r *types.NormalizedRow) { r.DiscountPrice = types.IntPtr(99) }},
		{"discount start", func(r *types.NormalizedRow) { r.DiscountStart = &discountStart }},
		{"unit price", func(r *types.NormalizedRow) { r.UnitPrice = types.IntPtr(129) }},
		{"unit price base quantity", func(r *types.NormalizedRow) { r.UnitPriceBaseQuantity = types.StringPtr("1") }},
		{"unit price base unit", func(r *types.NormalizedRow) { r.UnitPriceBaseUnit = types.StringPtr("l") }},
		{"lowest price 30d", func(r *types.NormalizedRow) { r.LowestPrice30d = types.IntPtr(119) }},
		{"anchor price", func(r *types.NormalizedRow) { r.AnchorPrice = types.IntPtr(139) }},
		{"anchor price as of", func(r *types.NormalizedRow) { r.AnchorPriceAsOf = &discountStart }},
	}

	base := ComputePriceSignature(baseRow())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := baseRow()
			tt.mutate(&row)
			assert.NotEqual(t, base, ComputePriceSignature(row),
				"changing %s must change the signature", tt.name)
		})
	}
}

// A nil optional and its zero value are different price facts.
func TestPriceSignatureNullVsZero(t *testing.T) {
	withNil := baseRow()

	withZero := baseRow()
	withZero.DiscountPrice = types.IntPtr(0)

	assert.NotEqual(t, ComputePriceSignature(withNil), ComputePriceSignature(withZero))
}

// A discount equal to the regular price is still a distinct signature.
func TestPriceSignatureDiscountEqualsPrice(t *testing.T) {
	plain := baseRow()

	discounted := baseRow()
	discounted.DiscountPrice = types.IntPtr(discounted.Price)

	assert.NotEqual(t, ComputePriceSignature(plain), ComputePriceSignature(discounted))
}

func TestPriceSignatureTimestampEquality(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	utc := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	cet := utc.In(loc)

	row1 := baseRow()
	row1.DiscountStart = &utc
	row2 := baseRow()
	row2.DiscountStart = &cet

	assert.Equal(t, ComputePriceSignature(row1), ComputePriceSignature(row2),
		"equal instants in different zones must hash identically")
}

func TestPriceSignatureFormat(t *testing.T) {
	sig := ComputePriceSignature(baseRow())
	assert.Len(t, sig, 64, "sha-256 hex digest")
	assert.Regexp(t, "^[0-9a-f]{64}$", sig)
}
