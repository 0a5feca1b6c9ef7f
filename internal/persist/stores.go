package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	adapterconfig "github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// ErrStoreNotFound is returned when no store matches the identifier and
// auto-registration is not possible.
var ErrStoreNotFound = errors.New("store not found")

// IdentifierTypeUnresolved marks rows whose store could not be determined.
// Such identifiers are recorded but never auto-registered.
const IdentifierTypeUnresolved = "unresolved"

const pgUniqueViolation = "23505"

// StoreResolver resolves store identifiers to store ids, auto-registering
// stores when metadata permits.
type StoreResolver struct {
	pool *pgxpool.Pool
}

func NewStoreResolver(pool *pgxpool.Pool) *StoreResolver {
	return &StoreResolver{pool: pool}
}

// Resolve looks up a store by (chain, identifier type, identifier value).
// When nothing matches and metadata is available, the store is registered as
// a pending virtual store and its id returned. Returns ErrStoreNotFound when
// neither path yields a store.
func (r *StoreResolver) Resolve(ctx context.Context, chainSlug, identType, identValue string, metadata *types.StoreMetadata, autoRegister bool) (string, error) {
	storeID, err := r.lookup(ctx, chainSlug, identType, identValue)
	if err == nil {
		return storeID, nil
	}
	if !errors.Is(err, ErrStoreNotFound) {
		return "", err
	}

	if !autoRegister || identType == IdentifierTypeUnresolved {
		return "", ErrStoreNotFound
	}

	storeID, err = r.register(ctx, chainSlug, identType, identValue, metadata)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Concurrent worker registered the same store first.
			return r.lookup(ctx, chainSlug, identType, identValue)
		}
		return "", err
	}
	return storeID, nil
}

func (r *StoreResolver) lookup(ctx context.Context, chainSlug, identType, identValue string) (string, error) {
	var storeID string
	err := r.pool.QueryRow(ctx, `
		SELECT store_id
		FROM store_identifiers
		WHERE chain_slug = $1 AND type = $2 AND value = $3
		LIMIT 1
	`, chainSlug, identType, identValue).Scan(&storeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrStoreNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store lookup for %s/%s=%s: %w", chainSlug, identType, identValue, err)
	}
	return storeID, nil
}

func (r *StoreResolver) register(ctx context.Context, chainSlug, identType, identValue string, metadata *types.StoreMetadata) (string, error) {
	if err := r.ensureChain(ctx, chainSlug); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s %s", chainDisplayName(chainSlug), identValue)
	var address, city, postalCode *string
	if metadata != nil {
		if metadata.Name != "" {
			name = metadata.Name
		}
		if metadata.Address != "" {
			address = &metadata.Address
		}
		if metadata.City != "" {
			city = &metadata.City
		}
		if metadata.PostalCode != "" {
			postalCode = &metadata.PostalCode
		}
	}

	storeID := cuid2.GeneratePrefixedId("store", cuid2.PrefixedIdOptions{})

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin store registration: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO stores (id, chain_slug, name, address, city, postal_code, is_virtual, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, 'pending', NOW(), NOW())
	`, storeID, chainSlug, name, address, city, postalCode)
	if err != nil {
		return "", fmt.Errorf("insert store: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO store_identifiers (id, store_id, chain_slug, type, value, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, cuid2.GeneratePrefixedId("sid", cuid2.PrefixedIdOptions{}), storeID, chainSlug, identType, identValue)
	if err != nil {
		return "", fmt.Errorf("insert store identifier: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit store registration: %w", err)
	}

	log.Info().
		Str("chain", chainSlug).
		Str("store_id", storeID).
		Str("identifier", identValue).
		Msg("auto-registered store, geocoding required")

	return storeID, nil
}

// ensureChain inserts the chain record if it does not exist yet.
func (r *StoreResolver) ensureChain(ctx context.Context, chainSlug string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chains (slug, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (slug) DO NOTHING
	`, chainSlug, chainDisplayName(chainSlug))
	if err != nil {
		return fmt.Errorf("ensure chain %s: %w", chainSlug, err)
	}
	return nil
}

func chainDisplayName(chainSlug string) string {
	if cfg, ok := adapterconfig.GetChainConfig(adapterconfig.ChainID(chainSlug)); ok {
		return cfg.Name
	}
	return chainSlug
}
