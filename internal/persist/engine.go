package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// Options controls store resolution for one persist call.
type Options struct {
	// IdentifierType is the store_identifiers.type to match ("filename_code",
	// "portal_id", ...). Defaults to "filename_code".
	IdentifierType string
	// AutoRegister permits creating a pending store when the identifier is
	// unknown and metadata is available.
	AutoRegister bool
	// Metadata supplies name/address for auto-registration.
	Metadata *types.StoreMetadata
}

// Result summarizes one persist call for a single store group.
type Result struct {
	Total        int      `json:"total"`
	Persisted    int      `json:"persisted"`
	PriceChanges int      `json:"priceChanges"`
	Unchanged    int      `json:"unchanged"`
	Failed       int      `json:"failed"`
	Errors       []string `json:"errors,omitempty"`
	StoreID      string   `json:"storeId,omitempty"`
}

// Engine writes normalized rows for one store into the database. Lookups run
// first (phase 1), then every write is queued into a single batched
// transaction (phase 2), so a price change's close-insert-update sequence is
// never partially visible.
type Engine struct {
	pool     *pgxpool.Pool
	resolver *StoreResolver
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool, resolver: NewStoreResolver(pool)}
}

// existingState mirrors the columns of store_item_state the engine needs to
// decide between insert, touch, and price change.
type existingState struct {
	id           string
	currentPrice int
	signature    string
}

// itemPlan is the per-row write decision computed between the phases.
type itemPlan struct {
	row    types.NormalizedRow
	itemID string
	// matchedBy is "", "external_id" or "name"
	matchedBy string
}

// PersistStoreRows resolves the store and writes the rows. The returned
// Result is non-nil whenever the store resolved, even if some rows failed
// validation.
func (e *Engine) PersistStoreRows(ctx context.Context, chainSlug, storeIdentifier string, rows []types.NormalizedRow, opts Options) (*Result, error) {
	identType := opts.IdentifierType
	if identType == "" {
		identType = "filename_code"
	}

	res := &Result{Total: len(rows)}

	storeID, err := e.resolver.Resolve(ctx, chainSlug, identType, storeIdentifier, opts.Metadata, opts.AutoRegister)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, fmt.Errorf("store %s/%s=%s: %w", chainSlug, identType, storeIdentifier, ErrStoreNotFound)
		}
		return nil, err
	}
	res.StoreID = storeID

	valid := make([]types.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		if msg := validateRow(row); msg != "" {
			res.Failed++
			res.Errors = appendError(res.Errors, fmt.Sprintf("row %d: %s", row.RowNumber, msg))
			continue
		}
		valid = append(valid, row)
	}
	if len(valid) == 0 {
		return res, nil
	}

	plans, err := e.planItems(ctx, chainSlug, valid)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]string, 0, len(plans))
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		if !seen[p.itemID] {
			seen[p.itemID] = true
			itemIDs = append(itemIDs, p.itemID)
		}
	}

	barcodes, err := e.loadBarcodes(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	states, err := e.loadStates(ctx, storeID, itemIDs)
	if err != nil {
		return nil, err
	}

	if err := e.writeBatch(ctx, chainSlug, storeID, plans, barcodes, states, res); err != nil {
		return nil, err
	}

	log.Debug().
		Str("chain", chainSlug).
		Str("store_id", storeID).
		Int("persisted", res.Persisted).
		Int("price_changes", res.PriceChanges).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Msg("persisted store rows")

	return res, nil
}

// planItems matches rows to retailer items: by (chain, external_id) first,
// then by (chain, name), assigning fresh ids to the remainder. Rows that
// target the same item share its id within the batch.
func (e *Engine) planItems(ctx context.Context, chainSlug string, rows []types.NormalizedRow) ([]itemPlan, error) {
	externalIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ExternalID != nil && *row.ExternalID != "" {
			externalIDs = append(externalIDs, *row.ExternalID)
		}
	}

	byExternal := make(map[string]string)
	if len(externalIDs) > 0 {
		rs, err := e.pool.Query(ctx, `
			SELECT id, external_id FROM retailer_items
			WHERE chain_slug = $1 AND external_id = ANY($2)
		`, chainSlug, externalIDs)
		if err != nil {
			return nil, fmt.Errorf("lookup items by external_id: %w", err)
		}
		defer rs.Close()
		for rs.Next() {
			var id, extID string
			if err := rs.Scan(&id, &extID); err != nil {
				return nil, err
			}
			byExternal[extID] = id
		}
		rs.Close()
		if err := rs.Err(); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ExternalID != nil && byExternal[*row.ExternalID] != "" {
			continue
		}
		names = append(names, row.Name)
	}

	byName := make(map[string]string)
	if len(names) > 0 {
		rs, err := e.pool.Query(ctx, `
			SELECT id, name FROM retailer_items
			WHERE chain_slug = $1 AND name = ANY($2)
		`, chainSlug, names)
		if err != nil {
			return nil, fmt.Errorf("lookup items by name: %w", err)
		}
		defer rs.Close()
		for rs.Next() {
			var id, name string
			if err := rs.Scan(&id, &name); err != nil {
				return nil, err
			}
			byName[name] = id
		}
		rs.Close()
		if err := rs.Err(); err != nil {
			return nil, err
		}
	}

	plans := make([]itemPlan, 0, len(rows))
	assigned := make(map[string]string) // batch-local: match key -> new id
	for _, row := range rows {
		plan := itemPlan{row: row}
		switch {
		case row.ExternalID != nil && byExternal[*row.ExternalID] != "":
			plan.itemID = byExternal[*row.ExternalID]
			plan.matchedBy = "external_id"
		case byName[row.Name] != "":
			plan.itemID = byName[row.Name]
			plan.matchedBy = "name"
		default:
			key := "name:" + row.Name
			if row.ExternalID != nil && *row.ExternalID != "" {
				key = "ext:" + *row.ExternalID
			}
			if id, ok := assigned[key]; ok {
				// Duplicate of a row earlier in this batch; reuse its item.
				plan.itemID = id
				plan.matchedBy = "duplicate"
			} else {
				plan.itemID = cuid2.GeneratePrefixedId("ritem", cuid2.PrefixedIdOptions{})
				assigned[key] = plan.itemID
			}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// loadBarcodes returns the existing barcode set per item id.
func (e *Engine) loadBarcodes(ctx context.Context, itemIDs []string) (map[string]map[string]bool, error) {
	out := make(map[string]map[string]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rs, err := e.pool.Query(ctx, `
		SELECT retailer_item_id, barcode FROM retailer_item_barcodes
		WHERE retailer_item_id = ANY($1)
	`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup barcodes: %w", err)
	}
	defer rs.Close()
	for rs.Next() {
		var itemID, barcode string
		if err := rs.Scan(&itemID, &barcode); err != nil {
			return nil, err
		}
		if out[itemID] == nil {
			out[itemID] = make(map[string]bool)
		}
		out[itemID][barcode] = true
	}
	return out, rs.Err()
}

// loadStates returns the existing store_item_state row per item id.
func (e *Engine) loadStates(ctx context.Context, storeID string, itemIDs []string) (map[string]existingState, error) {
	out := make(map[string]existingState, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rs, err := e.pool.Query(ctx, `
		SELECT id, retailer_item_id, current_price, price_signature
		FROM store_item_state
		WHERE store_id = $1 AND retailer_item_id = ANY($2)
	`, storeID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup store item state: %w", err)
	}
	defer rs.Close()
	for rs.Next() {
		var st existingState
		var itemID string
		if err := rs.Scan(&st.id, &itemID, &st.currentPrice, &st.signature); err != nil {
			return nil, err
		}
		out[itemID] = st
	}
	return out, rs.Err()
}

// writeBatch queues every write into one pgx batch inside one transaction.
func (e *Engine) writeBatch(ctx context.Context, chainSlug, storeID string, plans []itemPlan, barcodes map[string]map[string]bool, states map[string]existingState, res *Result) error {
	now := time.Now()
	batch := &pgx.Batch{}
	queue := func(sql string, args []interface{}) error {
		batch.Queue(sql, args...)
		return nil
	}

	itemInsert := newInsertBuilder("retailer_items",
		[]string{"id", "chain_slug", "external_id", "name", "description", "category", "subcategory", "brand", "unit", "unit_quantity", "image_url", "created_at", "updated_at"},
		"ON CONFLICT DO NOTHING", queue)

	barcodeInsert := newInsertBuilder("retailer_item_barcodes",
		[]string{"id", "retailer_item_id", "barcode", "is_primary", "created_at"},
		"ON CONFLICT (retailer_item_id, barcode) DO NOTHING", queue)

	stateInsert := newInsertBuilder("store_item_state",
		[]string{"id", "store_id", "retailer_item_id", "current_price", "discount_price", "discount_start", "discount_end", "in_stock", "unit_price", "unit_price_base_quantity", "unit_price_base_unit", "lowest_price_30d", "anchor_price", "anchor_price_as_of", "price_signature", "last_seen_at", "updated_at"},
		"", queue)

	// price_periods references store_item_state, and the two builders fill at
	// different row widths. Pending state inserts must reach the batch before
	// any period statement that points at them.
	periodInsert := newInsertBuilder("price_periods",
		[]string{"id", "store_item_state_id", "price", "discount_price", "discount_start", "discount_end", "unit_price", "lowest_price_30d", "anchor_price", "price_signature", "started_at"},
		"", func(sql string, args []interface{}) error {
			if err := stateInsert.Flush(); err != nil {
				return err
			}
			batch.Queue(sql, args...)
			return nil
		})

	inserted := make(map[string]bool)
	for _, p := range plans {
		row := p.row
		switch p.matchedBy {
		case "external_id":
			batch.Queue(`
				UPDATE retailer_items
				SET name = $1, description = $2, category = $3, subcategory = $4,
				    brand = $5, unit = $6, unit_quantity = $7, image_url = $8,
				    updated_at = $9
				WHERE id = $10
			`, row.Name, row.Description, row.Category, row.Subcategory,
				row.Brand, row.Unit, row.UnitQuantity, row.ImageURL, now, p.itemID)
		case "name":
			// Name matches only fill fields the item does not have yet.
			batch.Queue(`
				UPDATE retailer_items
				SET external_id = COALESCE(external_id, $1),
				    description = COALESCE(description, $2),
				    category = COALESCE(category, $3),
				    subcategory = COALESCE(subcategory, $4),
				    brand = COALESCE(brand, $5),
				    unit = COALESCE(unit, $6),
				    unit_quantity = COALESCE(unit_quantity, $7),
				    image_url = COALESCE(image_url, $8),
				    updated_at = $9
				WHERE id = $10
			`, row.ExternalID, row.Description, row.Category, row.Subcategory,
				row.Brand, row.Unit, row.UnitQuantity, row.ImageURL, now, p.itemID)
		case "duplicate":
			// Item write already queued for an earlier row.
		default:
			if inserted[p.itemID] {
				break
			}
			inserted[p.itemID] = true
			if err := itemInsert.Add(p.itemID, chainSlug, row.ExternalID, row.Name,
				row.Description, row.Category, row.Subcategory, row.Brand,
				row.Unit, row.UnitQuantity, row.ImageURL, now, now); err != nil {
				return err
			}
		}
	}
	if err := itemInsert.Flush(); err != nil {
		return err
	}

	for _, p := range plans {
		existing := barcodes[p.itemID]
		for _, barcode := range p.row.Barcodes {
			barcode = strings.TrimSpace(barcode)
			if barcode == "" || (existing != nil && existing[barcode]) {
				continue
			}
			// First barcode of a previously barcode-less item becomes primary.
			isPrimary := len(existing) == 0
			if existing == nil {
				existing = make(map[string]bool)
				barcodes[p.itemID] = existing
			}
			existing[barcode] = true
			if err := barcodeInsert.Add(
				cuid2.GeneratePrefixedId("bc", cuid2.PrefixedIdOptions{}),
				p.itemID, barcode, isPrimary, now); err != nil {
				return err
			}
		}
	}
	if err := barcodeInsert.Flush(); err != nil {
		return err
	}

	// When a file repeats an item, the last row wins; earlier occurrences
	// must not generate competing state writes in the same batch.
	lastPlan := make(map[string]int, len(plans))
	for i, p := range plans {
		lastPlan[p.itemID] = i
	}

	for i, p := range plans {
		if lastPlan[p.itemID] != i {
			res.Persisted++
			continue
		}
		row := p.row
		sig := ComputePriceSignature(row)
		state, hasState := states[p.itemID]

		switch {
		case !hasState:
			stateID := cuid2.GeneratePrefixedId("sis", cuid2.PrefixedIdOptions{})
			if err := stateInsert.Add(stateID, storeID, p.itemID, row.Price,
				row.DiscountPrice, row.DiscountStart, row.DiscountEnd, true,
				row.UnitPrice, row.UnitPriceBaseQuantity, row.UnitPriceBaseUnit,
				row.LowestPrice30d, row.AnchorPrice, row.AnchorPriceAsOf,
				sig, now, now); err != nil {
				return err
			}
			if err := periodInsert.Add(
				cuid2.GeneratePrefixedId("pp", cuid2.PrefixedIdOptions{}),
				stateID, row.Price, row.DiscountPrice, row.DiscountStart,
				row.DiscountEnd, row.UnitPrice, row.LowestPrice30d,
				row.AnchorPrice, sig, now); err != nil {
				return err
			}
			// A later row for the same item in this batch compares against
			// the state written here.
			states[p.itemID] = existingState{id: stateID, currentPrice: row.Price, signature: sig}
			res.Persisted++

		case state.signature == sig:
			batch.Queue(`UPDATE store_item_state SET last_seen_at = $1 WHERE id = $2`, now, state.id)
			res.Persisted++
			res.Unchanged++

		default:
			batch.Queue(`
				UPDATE price_periods SET ended_at = $1
				WHERE store_item_state_id = $2 AND ended_at IS NULL
			`, now, state.id)
			if err := periodInsert.Add(
				cuid2.GeneratePrefixedId("pp", cuid2.PrefixedIdOptions{}),
				state.id, row.Price, row.DiscountPrice, row.DiscountStart,
				row.DiscountEnd, row.UnitPrice, row.LowestPrice30d,
				row.AnchorPrice, sig, now); err != nil {
				return err
			}
			batch.Queue(`
				UPDATE store_item_state
				SET previous_price = $1, current_price = $2, discount_price = $3,
				    discount_start = $4, discount_end = $5, unit_price = $6,
				    unit_price_base_quantity = $7, unit_price_base_unit = $8,
				    lowest_price_30d = $9, anchor_price = $10, anchor_price_as_of = $11,
				    price_signature = $12, last_seen_at = $13, updated_at = $14
				WHERE id = $15
			`, state.currentPrice, row.Price, row.DiscountPrice,
				row.DiscountStart, row.DiscountEnd, row.UnitPrice,
				row.UnitPriceBaseQuantity, row.UnitPriceBaseUnit,
				row.LowestPrice30d, row.AnchorPrice, row.AnchorPriceAsOf,
				sig, now, now, state.id)
			states[p.itemID] = existingState{id: state.id, currentPrice: row.Price, signature: sig}
			res.Persisted++
			res.PriceChanges++
		}
	}
	if err := stateInsert.Flush(); err != nil {
		return err
	}
	if err := periodInsert.Flush(); err != nil {
		return err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist batch: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("persist batch statement %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close persist batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist batch: %w", err)
	}
	return nil
}

// validateRow returns an error message for rows that must not be persisted.
func validateRow(row types.NormalizedRow) string {
	if strings.TrimSpace(row.Name) == "" {
		return "missing product name"
	}
	if row.Price <= 0 {
		return "price must be positive"
	}
	return ""
}

const maxErrorsPerGroup = 5

// appendError keeps the first few errors and then a single overflow marker.
func appendError(errs []string, msg string) []string {
	if len(errs) < maxErrorsPerGroup {
		return append(errs, msg)
	}
	if len(errs) == maxErrorsPerGroup {
		return append(errs, "further errors truncated")
	}
	return errs
}
