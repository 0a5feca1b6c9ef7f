// Package stores implements the store administration operations: listing,
// approving and rejecting auto-registered stores, creating virtual stores,
// linking a physical store to the virtual store whose prices it follows, and
// bulk CSV import.
package stores

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	adapterconfig "github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
)

// Store statuses. Auto-registered stores start as StatusPending and an
// operator moves them to StatusActive or StatusRejected.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// IdentifierTypePriceSource marks the identifier row that links a physical
// store to the virtual store whose prices it follows. The value is the
// virtual store's id.
const IdentifierTypePriceSource = "price_source"

var ErrStoreNotFound = errors.New("store not found")

// Store is one row of the admin listing.
type Store struct {
	ID         string  `json:"id"`
	ChainSlug  string  `json:"chainSlug"`
	Name       string  `json:"name"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	IsVirtual  bool    `json:"isVirtual"`
	Status     string  `json:"status"`
	// Identifier is the filename_code value, when one exists.
	Identifier string `json:"identifier,omitempty"`
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	ChainSlug   string
	Status      string
	VirtualOnly bool
	Limit       int
}

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// List returns stores matching the filter, ordered by chain and name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Store, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT s.id, s.chain_slug, s.name, s.address, s.city, s.postal_code,
		       s.is_virtual, s.status, COALESCE(si.value, '')
		FROM stores s
		LEFT JOIN store_identifiers si ON si.store_id = s.id AND si.type = 'filename_code'
		WHERE 1=1`
	params := make([]any, 0, 4)
	if filter.ChainSlug != "" {
		params = append(params, filter.ChainSlug)
		query += fmt.Sprintf(" AND s.chain_slug = $%d", len(params))
	}
	if filter.Status != "" {
		params = append(params, filter.Status)
		query += fmt.Sprintf(" AND s.status = $%d", len(params))
	}
	if filter.VirtualOnly {
		query += " AND s.is_virtual = true"
	}
	params = append(params, limit)
	query += fmt.Sprintf(" ORDER BY s.chain_slug, s.name LIMIT $%d", len(params))

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var st Store
		if err := rows.Scan(&st.ID, &st.ChainSlug, &st.Name, &st.Address, &st.City,
			&st.PostalCode, &st.IsVirtual, &st.Status, &st.Identifier); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Approve marks a pending store active.
func (s *Service) Approve(ctx context.Context, storeID string) error {
	return s.setStatus(ctx, storeID, StatusActive)
}

// Reject marks a store rejected. Rejected stores keep their rows but are
// excluded from price queries.
func (s *Service) Reject(ctx context.Context, storeID string) error {
	return s.setStatus(ctx, storeID, StatusRejected)
}

func (s *Service) setStatus(ctx context.Context, storeID, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE stores SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, storeID)
	if err != nil {
		return fmt.Errorf("update store %s status: %w", storeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %s: %w", storeID, ErrStoreNotFound)
	}
	log.Info().Str("store_id", storeID).Str("status", status).Msg("store status changed")
	return nil
}

// AddVirtual creates an active virtual store with an optional resolution
// identifier. Virtual stores represent pricing zones rather than physical
// locations (for example a chain's single national price list).
func (s *Service) AddVirtual(ctx context.Context, chainSlug, name, identType, identValue string) (string, error) {
	if err := s.ensureChain(ctx, chainSlug); err != nil {
		return "", err
	}

	storeID := cuid2.GeneratePrefixedId("store", cuid2.PrefixedIdOptions{})

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin add virtual store: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO stores (id, chain_slug, name, is_virtual, status, created_at, updated_at)
		VALUES ($1, $2, $3, true, $4, NOW(), NOW())
	`, storeID, chainSlug, name, StatusActive)
	if err != nil {
		return "", fmt.Errorf("insert virtual store: %w", err)
	}

	if identType != "" && identValue != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO store_identifiers (id, store_id, chain_slug, type, value, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, cuid2.GeneratePrefixedId("sid", cuid2.PrefixedIdOptions{}), storeID, chainSlug, identType, identValue)
		if err != nil {
			return "", fmt.Errorf("insert virtual store identifier: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit add virtual store: %w", err)
	}
	return storeID, nil
}

// LinkPriceSource records that a physical store's prices come from a virtual
// store of the same chain. An existing link is replaced.
func (s *Service) LinkPriceSource(ctx context.Context, physicalStoreID, virtualStoreID string) error {
	var physicalChain, virtualChain string
	var virtualIsVirtual bool

	err := s.pool.QueryRow(ctx, `SELECT chain_slug FROM stores WHERE id = $1`, physicalStoreID).Scan(&physicalChain)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("physical store %s: %w", physicalStoreID, ErrStoreNotFound)
	}
	if err != nil {
		return fmt.Errorf("load physical store %s: %w", physicalStoreID, err)
	}

	err = s.pool.QueryRow(ctx, `SELECT chain_slug, is_virtual FROM stores WHERE id = $1`, virtualStoreID).Scan(&virtualChain, &virtualIsVirtual)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("virtual store %s: %w", virtualStoreID, ErrStoreNotFound)
	}
	if err != nil {
		return fmt.Errorf("load virtual store %s: %w", virtualStoreID, err)
	}

	if !virtualIsVirtual {
		return fmt.Errorf("store %s is not virtual", virtualStoreID)
	}
	if physicalChain != virtualChain {
		return fmt.Errorf("stores belong to different chains (%s, %s)", physicalChain, virtualChain)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin link price source: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM store_identifiers WHERE store_id = $1 AND type = $2
	`, physicalStoreID, IdentifierTypePriceSource)
	if err != nil {
		return fmt.Errorf("clear previous price source link: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO store_identifiers (id, store_id, chain_slug, type, value, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, cuid2.GeneratePrefixedId("sid", cuid2.PrefixedIdOptions{}), physicalStoreID, physicalChain, IdentifierTypePriceSource, virtualStoreID)
	if err != nil {
		return fmt.Errorf("insert price source link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit link price source: %w", err)
	}
	log.Info().
		Str("physical_store_id", physicalStoreID).
		Str("virtual_store_id", virtualStoreID).
		Msg("linked store to virtual price source")
	return nil
}

// ImportCSV bulk-inserts physical stores for one chain. Expected header:
// name,code,address,city,postal_code — code becomes the store's
// filename_code identifier. Rows whose code already resolves are skipped.
// Returns the number of stores created.
func (s *Service) ImportCSV(ctx context.Context, chainSlug string, r io.Reader) (int, error) {
	if err := s.ensureChain(ctx, chainSlug); err != nil {
		return 0, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read import header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "code"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("import header missing %q column", required)
		}
	}
	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	created := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return created, fmt.Errorf("read import line %d: %w", line+1, err)
		}
		line++

		name := field(record, "name")
		code := field(record, "code")
		if name == "" || code == "" {
			return created, fmt.Errorf("import line %d: name and code are required", line)
		}

		var exists bool
		err = s.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM store_identifiers
				WHERE chain_slug = $1 AND type = 'filename_code' AND value = $2
			)
		`, chainSlug, code).Scan(&exists)
		if err != nil {
			return created, fmt.Errorf("import line %d lookup: %w", line, err)
		}
		if exists {
			continue
		}

		storeID := cuid2.GeneratePrefixedId("store", cuid2.PrefixedIdOptions{})
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return created, fmt.Errorf("import line %d: %w", line, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stores (id, chain_slug, name, address, city, postal_code, is_virtual, status, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), false, $7, NOW(), NOW())
		`, storeID, chainSlug, name, field(record, "address"), field(record, "city"), field(record, "postal_code"), StatusActive)
		if err == nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO store_identifiers (id, store_id, chain_slug, type, value, created_at)
				VALUES ($1, $2, $3, 'filename_code', $4, NOW())
			`, cuid2.GeneratePrefixedId("sid", cuid2.PrefixedIdOptions{}), storeID, chainSlug, code)
		}
		if err != nil {
			tx.Rollback(ctx)
			return created, fmt.Errorf("import line %d insert: %w", line, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return created, fmt.Errorf("import line %d commit: %w", line, err)
		}
		created++
	}

	log.Info().Str("chain", chainSlug).Int("created", created).Msg("store import finished")
	return created, nil
}

func (s *Service) ensureChain(ctx context.Context, chainSlug string) error {
	name := chainSlug
	if cfg, ok := adapterconfig.GetChainConfig(adapterconfig.ChainID(chainSlug)); ok {
		name = cfg.Name
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chains (slug, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (slug) DO NOTHING
	`, chainSlug, name)
	if err != nil {
		return fmt.Errorf("ensure chain %s: %w", chainSlug, err)
	}
	return nil
}
