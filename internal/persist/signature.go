package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/damir5/kosarica-sub000/internal/types"
)

// signatureFieldCount is the number of price fields covered by the signature.
const signatureFieldCount = 10

// ComputePriceSignature returns the SHA-256 hex digest of the canonical JSON
// encoding of the ten price fields, in fixed order:
//
//	[price, discountPrice, discountStartMs, discountEndMs, unitPrice,
//	 unitPriceBaseQuantity, unitPriceBaseUnit, lowestPrice30d,
//	 anchorPrice, anchorPriceAsOfMs]
//
// Timestamps serialize as epoch milliseconds, nil optionals as JSON null.
// Name, brand, description and every other row field are excluded: those
// update the retailer item but never open a new price period.
func ComputePriceSignature(row types.NormalizedRow) string {
	tuple := [signatureFieldCount]interface{}{
		row.Price,
		intOrNull(row.DiscountPrice),
		epochMsOrNull(row.DiscountStart),
		epochMsOrNull(row.DiscountEnd),
		intOrNull(row.UnitPrice),
		stringOrNull(row.UnitPriceBaseQuantity),
		stringOrNull(row.UnitPriceBaseUnit),
		intOrNull(row.LowestPrice30d),
		intOrNull(row.AnchorPrice),
		epochMsOrNull(row.AnchorPriceAsOf),
	}

	// Marshal of a fixed-order array cannot fail for these value types.
	encoded, _ := json.Marshal(tuple)
	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:])
}

func intOrNull(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNull(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func epochMsOrNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
