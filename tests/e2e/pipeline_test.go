package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/damir5/kosarica-sub000/internal/adapters/config"
	"github.com/damir5/kosarica-sub000/internal/adapters/registry"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/persist"
	"github.com/damir5/kosarica-sub000/internal/pipeline"
	"github.com/damir5/kosarica-sub000/internal/storage"
	"github.com/damir5/kosarica-sub000/internal/stores"
	"github.com/damir5/kosarica-sub000/internal/types"
)

func TestMain(m *testing.M) {
	if os.Getenv("TESTCONTAINERS_ENABLED") == "false" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func setupTestDatabase(ctx context.Context) (*postgres.PostgresContainer, error) {
	return postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
}

func setupTestSchema(ctx context.Context, t *testing.T) {
	t.Helper()

	schema := `
		CREATE TABLE IF NOT EXISTS chains (
			slug text PRIMARY KEY,
			name text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stores (
			id text PRIMARY KEY,
			chain_slug text NOT NULL REFERENCES chains(slug),
			name text NOT NULL,
			address text,
			city text,
			postal_code text,
			is_virtual boolean NOT NULL DEFAULT false,
			status text NOT NULL DEFAULT 'pending',
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS store_identifiers (
			id text PRIMARY KEY,
			store_id text NOT NULL REFERENCES stores(id),
			chain_slug text NOT NULL REFERENCES chains(slug),
			type text NOT NULL,
			value text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			UNIQUE (store_id, type, value)
		);

		-- Resolution identifiers are unique per chain; price_source links are
		-- exempt because many physical stores can follow one virtual store.
		CREATE UNIQUE INDEX IF NOT EXISTS store_identifiers_chain_type_value_key
			ON store_identifiers (chain_slug, type, value)
			WHERE type <> 'price_source';

		CREATE TABLE IF NOT EXISTS retailer_items (
			id text PRIMARY KEY,
			chain_slug text NOT NULL REFERENCES chains(slug),
			external_id text,
			name text NOT NULL,
			description text,
			category text,
			subcategory text,
			brand text,
			unit text,
			unit_quantity text,
			image_url text,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS retailer_item_barcodes (
			id text PRIMARY KEY,
			retailer_item_id text NOT NULL REFERENCES retailer_items(id),
			barcode text NOT NULL,
			is_primary boolean NOT NULL DEFAULT false,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			UNIQUE (retailer_item_id, barcode)
		);

		CREATE TABLE IF NOT EXISTS store_item_state (
			id text PRIMARY KEY,
			store_id text NOT NULL REFERENCES stores(id),
			retailer_item_id text NOT NULL REFERENCES retailer_items(id),
			current_price int NOT NULL,
			previous_price int,
			discount_price int,
			discount_start timestamptz,
			discount_end timestamptz,
			in_stock boolean NOT NULL DEFAULT true,
			unit_price int,
			unit_price_base_quantity text,
			unit_price_base_unit text,
			lowest_price_30d int,
			anchor_price int,
			anchor_price_as_of timestamptz,
			price_signature text NOT NULL,
			last_seen_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL,
			UNIQUE (store_id, retailer_item_id)
		);

		CREATE TABLE IF NOT EXISTS price_periods (
			id text PRIMARY KEY,
			store_item_state_id text NOT NULL REFERENCES store_item_state(id),
			price int NOT NULL,
			discount_price int,
			discount_start timestamptz,
			discount_end timestamptz,
			unit_price int,
			lowest_price_30d int,
			anchor_price int,
			price_signature text NOT NULL,
			started_at timestamptz NOT NULL,
			ended_at timestamptz
		);

		CREATE TABLE IF NOT EXISTS archives (
			id text PRIMARY KEY,
			chain_slug text NOT NULL,
			source_url text NOT NULL,
			filename text NOT NULL,
			original_format text,
			archive_path text NOT NULL,
			archive_type text NOT NULL DEFAULT 'local',
			content_type text,
			file_size bigint,
			compressed_size bigint,
			checksum text NOT NULL,
			downloaded_at timestamptz,
			metadata jsonb,
			created_at timestamptz NOT NULL DEFAULT NOW(),
			updated_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ingestion_runs (
			id text PRIMARY KEY,
			chain_slug text NOT NULL,
			target_date text,
			source text NOT NULL,
			status text NOT NULL,
			started_at timestamptz,
			completed_at timestamptz,
			total_files int NOT NULL DEFAULT 0,
			processed_files int NOT NULL DEFAULT 0,
			total_entries int NOT NULL DEFAULT 0,
			processed_entries int NOT NULL DEFAULT 0,
			error_count int NOT NULL DEFAULT 0,
			metadata jsonb,
			parent_run_id text,
			rerun_type text,
			rerun_target_id text,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ingestion_files (
			id text PRIMARY KEY,
			run_id text NOT NULL REFERENCES ingestion_runs(id),
			filename text NOT NULL,
			file_type text NOT NULL,
			file_size int,
			file_hash text,
			storage_key text,
			status text NOT NULL,
			entry_count int,
			total_chunks int,
			processed_chunks int,
			chunk_size int,
			metadata jsonb,
			processed_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ingestion_chunks (
			id text PRIMARY KEY,
			file_id text NOT NULL REFERENCES ingestion_files(id),
			run_id text NOT NULL REFERENCES ingestion_runs(id),
			chunk_index int NOT NULL,
			start_row int NOT NULL,
			end_row int NOT NULL,
			row_count int NOT NULL,
			storage_key text NOT NULL,
			status text NOT NULL,
			processed_at timestamptz,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ingestion_errors (
			id text PRIMARY KEY,
			run_id text NOT NULL REFERENCES ingestion_runs(id),
			file_id text,
			phase text NOT NULL,
			error_type text NOT NULL,
			error_message text NOT NULL,
			severity text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);
	`

	_, err := database.Pool().Exec(ctx, schema)
	require.NoError(t, err, "create test schema")
}

func konzumRows() []types.NormalizedRow {
	return []types.NormalizedRow{
		{
			StoreIdentifier: "0613",
			ExternalID:      types.StringPtr("10001"),
			Name:            "Mlijeko 2.8% 1L",
			Price:           129,
			Barcodes:        []string{"3850102000014"},
			RowNumber:       1,
		},
		{
			StoreIdentifier: "0613",
			ExternalID:      types.StringPtr("10002"),
			Name:            "Kruh polubijeli 700g",
			Price:           89,
			RowNumber:       2,
		},
	}
}

// TestPersistEngine drives the persistence engine against a real database:
// store auto-registration, idempotent re-persist, price change rollover,
// fill-null item matching, and additive barcodes.
func TestPersistEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ctx := context.Background()

	container, err := setupTestDatabase(ctx)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	require.NoError(t, database.Connect(ctx, connStr, 10, 2, 0, 0))
	defer database.Close()
	setupTestSchema(ctx, t)

	pool := database.Pool()
	engine := persist.NewEngine(pool)

	opts := persist.Options{
		AutoRegister: true,
		Metadata: &types.StoreMetadata{
			Address:    "ZITNA 1A",
			City:       "IVANIC GRAD",
			PostalCode: "10310",
		},
	}

	var storeID string

	t.Run("AutoRegistersVirtualStore", func(t *testing.T) {
		res, err := engine.PersistStoreRows(ctx, "konzum", "0613", konzumRows(), opts)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 2, res.Persisted)
		assert.Equal(t, 0, res.Failed)
		assert.Equal(t, 0, res.PriceChanges)
		require.NotEmpty(t, res.StoreID)
		storeID = res.StoreID

		var isVirtual bool
		var status, city string
		err = pool.QueryRow(ctx, `
			SELECT is_virtual, status, city FROM stores WHERE id = $1
		`, storeID).Scan(&isVirtual, &status, &city)
		require.NoError(t, err)
		assert.True(t, isVirtual)
		assert.Equal(t, "pending", status)
		assert.Equal(t, "IVANIC GRAD", city)

		var identCount int
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM store_identifiers
			WHERE store_id = $1 AND type = 'filename_code' AND value = '0613'
		`, storeID).Scan(&identCount)
		require.NoError(t, err)
		assert.Equal(t, 1, identCount)

		var chainName string
		err = pool.QueryRow(ctx, `SELECT name FROM chains WHERE slug = 'konzum'`).Scan(&chainName)
		require.NoError(t, err)
		assert.NotEmpty(t, chainName)
	})

	t.Run("RepersistIsIdempotent", func(t *testing.T) {
		res, err := engine.PersistStoreRows(ctx, "konzum", "0613", konzumRows(), opts)
		require.NoError(t, err)
		assert.Equal(t, res.StoreID, storeID, "second persist resolves the same store")
		assert.Equal(t, 2, res.Persisted)
		assert.Equal(t, 2, res.Unchanged)
		assert.Equal(t, 0, res.PriceChanges)

		var itemCount int
		err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM retailer_items WHERE chain_slug = 'konzum'`).Scan(&itemCount)
		require.NoError(t, err)
		assert.Equal(t, 2, itemCount)

		// One open period per item, nothing closed.
		var openPeriods, closedPeriods int
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*) FILTER (WHERE ended_at IS NULL),
			       COUNT(*) FILTER (WHERE ended_at IS NOT NULL)
			FROM price_periods pp
			JOIN store_item_state sis ON sis.id = pp.store_item_state_id
			WHERE sis.store_id = $1
		`, storeID).Scan(&openPeriods, &closedPeriods)
		require.NoError(t, err)
		assert.Equal(t, 2, openPeriods)
		assert.Equal(t, 0, closedPeriods)
	})

	t.Run("PriceChangeRollsPeriod", func(t *testing.T) {
		rows := konzumRows()
		rows[0].Price = 149

		res, err := engine.PersistStoreRows(ctx, "konzum", "0613", rows, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, res.PriceChanges)
		assert.Equal(t, 1, res.Unchanged)

		var currentPrice int
		var previousPrice *int
		err = pool.QueryRow(ctx, `
			SELECT sis.current_price, sis.previous_price
			FROM store_item_state sis
			JOIN retailer_items ri ON ri.id = sis.retailer_item_id
			WHERE sis.store_id = $1 AND ri.external_id = '10001'
		`, storeID).Scan(&currentPrice, &previousPrice)
		require.NoError(t, err)
		assert.Equal(t, 149, currentPrice)
		require.NotNil(t, previousPrice)
		assert.Equal(t, 129, *previousPrice)

		// The old period closed, a new open one carries the new price.
		var openPrice int
		var closedCount int
		err = pool.QueryRow(ctx, `
			SELECT pp.price,
			       (SELECT COUNT(*) FROM price_periods p2
			        WHERE p2.store_item_state_id = pp.store_item_state_id AND p2.ended_at IS NOT NULL)
			FROM price_periods pp
			JOIN store_item_state sis ON sis.id = pp.store_item_state_id
			JOIN retailer_items ri ON ri.id = sis.retailer_item_id
			WHERE sis.store_id = $1 AND ri.external_id = '10001' AND pp.ended_at IS NULL
		`, storeID).Scan(&openPrice, &closedCount)
		require.NoError(t, err)
		assert.Equal(t, 149, openPrice)
		assert.Equal(t, 1, closedCount)
	})

	t.Run("NameMatchFillsNullFields", func(t *testing.T) {
		// First pass knows the product only by name.
		first := []types.NormalizedRow{{
			StoreIdentifier: "0613",
			Name:            "Jogurt natur 180g",
			Price:           59,
			RowNumber:       1,
		}}
		_, err := engine.PersistStoreRows(ctx, "konzum", "0613", first, opts)
		require.NoError(t, err)

		// Second pass brings the external id and brand for the same name.
		second := []types.NormalizedRow{{
			StoreIdentifier: "0613",
			Name:            "Jogurt natur 180g",
			ExternalID:      types.StringPtr("10003"),
			Brand:           types.StringPtr("Dukat"),
			Price:           59,
			RowNumber:       1,
		}}
		res, err := engine.PersistStoreRows(ctx, "konzum", "0613", second, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Unchanged, "same price signature, matched by name")

		var externalID, brand *string
		var count int
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*), MAX(external_id), MAX(brand)
			FROM retailer_items
			WHERE chain_slug = 'konzum' AND name = 'Jogurt natur 180g'
		`).Scan(&count, &externalID, &brand)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "name match must not create a second item")
		require.NotNil(t, externalID)
		assert.Equal(t, "10003", *externalID)
		require.NotNil(t, brand)
		assert.Equal(t, "Dukat", *brand)
	})

	t.Run("BarcodesAreAdditive", func(t *testing.T) {
		rows := konzumRows()
		rows[0].Price = 149
		rows[0].Barcodes = []string{"3850102000014", "3850102000021"}

		_, err := engine.PersistStoreRows(ctx, "konzum", "0613", rows, opts)
		require.NoError(t, err)

		type bc struct {
			barcode string
			primary bool
		}
		rs, err := pool.Query(ctx, `
			SELECT b.barcode, b.is_primary
			FROM retailer_item_barcodes b
			JOIN retailer_items ri ON ri.id = b.retailer_item_id
			WHERE ri.external_id = '10001'
			ORDER BY b.barcode
		`)
		require.NoError(t, err)
		defer rs.Close()

		var got []bc
		for rs.Next() {
			var b bc
			require.NoError(t, rs.Scan(&b.barcode, &b.primary))
			got = append(got, b)
		}
		require.NoError(t, rs.Err())
		require.Len(t, got, 2)
		assert.Equal(t, "3850102000014", got[0].barcode)
		assert.True(t, got[0].primary, "first barcode stays primary")
		assert.Equal(t, "3850102000021", got[1].barcode)
		assert.False(t, got[1].primary)
	})

	t.Run("InvalidRowsAreCountedNotPersisted", func(t *testing.T) {
		rows := []types.NormalizedRow{
			{StoreIdentifier: "0613", Name: "", Price: 100, RowNumber: 1},
			{StoreIdentifier: "0613", Name: "Besplatno", Price: 0, RowNumber: 2},
		}
		res, err := engine.PersistStoreRows(ctx, "konzum", "0613", rows, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, 0, res.Persisted)
		assert.Len(t, res.Errors, 2)
	})

	t.Run("LargeBatchOfNewItems", func(t *testing.T) {
		// Enough new items that both multi-row inserts flush mid-loop; the
		// period for every state must still land after its state insert.
		rows := make([]types.NormalizedRow, 0, 12)
		for i := 0; i < 12; i++ {
			rows = append(rows, types.NormalizedRow{
				StoreIdentifier: "0907",
				Name:            fmt.Sprintf("Novi artikl %02d", i),
				ExternalID:      types.StringPtr(fmt.Sprintf("20%03d", i)),
				Price:           100 + i,
				RowNumber:       i + 1,
			})
		}

		res, err := engine.PersistStoreRows(ctx, "konzum", "0907", rows, opts)
		require.NoError(t, err)
		assert.Equal(t, 12, res.Persisted)
		assert.Equal(t, 0, res.Failed)

		var stateCount, openPeriods int
		err = pool.QueryRow(ctx, `
			SELECT COUNT(DISTINCT sis.id), COUNT(*) FILTER (WHERE pp.ended_at IS NULL)
			FROM store_item_state sis
			JOIN price_periods pp ON pp.store_item_state_id = sis.id
			WHERE sis.store_id = $1
		`, res.StoreID).Scan(&stateCount, &openPeriods)
		require.NoError(t, err)
		assert.Equal(t, 12, stateCount)
		assert.Equal(t, 12, openPeriods)
	})
}

// TestRunAccounting exercises run, file, and work-unit bookkeeping.
func TestRunAccounting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ctx := context.Background()

	container, err := setupTestDatabase(ctx)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	require.NoError(t, database.Connect(ctx, connStr, 10, 2, 0, 0))
	defer database.Close()
	setupTestSchema(ctx, t)

	pool := database.Pool()

	runID, err := pipeline.CreateRun(ctx, pool, pipeline.RunOptions{
		ChainSlug:  "konzum",
		TargetDate: "2026-01-15",
		Source:     "cli",
	})
	require.NoError(t, err)

	run, err := pipeline.GetRun(ctx, pool, runID)
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)
	require.NotNil(t, run.TargetDate)
	assert.Equal(t, "2026-01-15", *run.TargetDate)

	fileID, err := pipeline.CreateIngestionFile(ctx, pool, runID, types.DiscoveredFile{
		URL:      "https://example.test/cjenik.zip",
		Filename: "cjenik.zip",
		Type:     types.FileTypeZIP,
	}, 2048, "deadbeef", "archives/konzum/cjenik.zip", "processing", nil)
	require.NoError(t, err)
	require.NoError(t, pipeline.RecordTotalFiles(ctx, pool, runID, 1))

	// Not done until every announced unit finished.
	require.NoError(t, pipeline.SetFileWorkUnits(ctx, pool, fileID, 2))
	done, err := pipeline.AdvanceFileProgress(ctx, pool, fileID)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = pipeline.AdvanceFileProgress(ctx, pool, fileID)
	require.NoError(t, err)
	assert.True(t, done)

	// Run stays open while its file is non-terminal.
	finished, err := pipeline.CheckRunCompletion(ctx, pool, runID)
	require.NoError(t, err)
	assert.False(t, finished)

	require.NoError(t, pipeline.MarkFileCompleted(ctx, pool, fileID))
	require.NoError(t, pipeline.IncrementProcessedFiles(ctx, pool, runID))
	finished, err = pipeline.CheckRunCompletion(ctx, pool, runID)
	require.NoError(t, err)
	assert.True(t, finished)

	run, err = pipeline.GetRun(ctx, pool, runID)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.NotNil(t, run.CompletedAt)

	t.Run("FailedFileFailsRun", func(t *testing.T) {
		badRunID, err := pipeline.CreateRun(ctx, pool, pipeline.RunOptions{
			ChainSlug: "konzum",
			Source:    "cli",
		})
		require.NoError(t, err)

		badFileID, err := pipeline.CreateIngestionFile(ctx, pool, badRunID, types.DiscoveredFile{
			URL:      "https://example.test/broken.csv",
			Filename: "broken.csv",
			Type:     types.FileTypeCSV,
		}, 128, "cafebabe", "", "processing", nil)
		require.NoError(t, err)
		require.NoError(t, pipeline.RecordTotalFiles(ctx, pool, badRunID, 1))

		pipeline.RecordRunError(ctx, pool, badRunID, &badFileID, "parse", "parse_error", "no parsable rows", "error")
		require.NoError(t, pipeline.MarkFileFailed(ctx, pool, badFileID))

		finished, err := pipeline.CheckRunCompletion(ctx, pool, badRunID)
		require.NoError(t, err)
		assert.True(t, finished)

		run, err := pipeline.GetRun(ctx, pool, badRunID)
		require.NoError(t, err)
		assert.Equal(t, "failed", run.Status)

		var errCount int
		err = pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM ingestion_errors WHERE run_id = $1 AND phase = 'parse'
		`, badRunID).Scan(&errCount)
		require.NoError(t, err)
		assert.Equal(t, 1, errCount)
	})
}

// TestArchiveDeduplication verifies checksum-based download dedup.
func TestArchiveDeduplication(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ctx := context.Background()

	container, err := setupTestDatabase(ctx)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	require.NoError(t, database.Connect(ctx, connStr, 10, 2, 0, 0))
	defer database.Close()
	setupTestSchema(ctx, t)

	content := []byte("datum;naziv;cijena\n")
	checksum := database.CalculateChecksum(content)

	archive := &database.Archive{
		ID:          database.GenerateArchiveID(),
		ChainSlug:   "konzum",
		SourceURL:   "https://example.test/cjenik.csv",
		Filename:    "cjenik.csv",
		ArchivePath: "archives/konzum/2026-01-15/cjenik.csv",
		ArchiveType: "local",
		Checksum:    checksum,
	}
	require.NoError(t, database.CreateArchive(ctx, archive))

	found, err := database.GetArchiveByChecksum(ctx, checksum)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, archive.ID, found.ID)

	missing, err := database.GetArchiveByChecksum(ctx, database.CalculateChecksum([]byte("other")))
	assert.ErrorIs(t, err, pgx.ErrNoRows, "unknown checksum means fresh download")
	assert.Nil(t, missing)
}

func TestStoreAdmin(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ctx := context.Background()

	container, err := setupTestDatabase(ctx)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	require.NoError(t, database.Connect(ctx, connStr, 10, 2, 0, 0))
	defer database.Close()
	setupTestSchema(ctx, t)

	pool := database.Pool()
	engine := persist.NewEngine(pool)
	svc := stores.NewService(pool)

	res, err := engine.PersistStoreRows(ctx, "konzum", "0613", konzumRows(), persist.Options{AutoRegister: true})
	require.NoError(t, err)
	pendingID := res.StoreID

	t.Run("ApprovePendingStore", func(t *testing.T) {
		listed, err := svc.List(ctx, stores.ListFilter{ChainSlug: "konzum", Status: stores.StatusPending})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, pendingID, listed[0].ID)
		assert.Equal(t, "0613", listed[0].Identifier)

		require.NoError(t, svc.Approve(ctx, pendingID))

		var status string
		require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM stores WHERE id = $1`, pendingID).Scan(&status))
		assert.Equal(t, stores.StatusActive, status)
	})

	t.Run("RejectUnknownStoreFails", func(t *testing.T) {
		err := svc.Reject(ctx, "store_doesnotexist")
		assert.ErrorIs(t, err, stores.ErrStoreNotFound)
	})

	t.Run("LinkPhysicalToVirtualPriceSource", func(t *testing.T) {
		virtualID, err := svc.AddVirtual(ctx, "konzum", "Konzum nacionalni cjenik", "national", "konzum")
		require.NoError(t, err)

		require.NoError(t, svc.LinkPriceSource(ctx, pendingID, virtualID))

		var linked string
		require.NoError(t, pool.QueryRow(ctx, `
			SELECT value FROM store_identifiers WHERE store_id = $1 AND type = $2
		`, pendingID, stores.IdentifierTypePriceSource).Scan(&linked))
		assert.Equal(t, virtualID, linked)

		// Linking across chains is refused.
		otherVirtual, err := svc.AddVirtual(ctx, "lidl", "Lidl nacionalni cjenik", "", "")
		require.NoError(t, err)
		assert.Error(t, svc.LinkPriceSource(ctx, pendingID, otherVirtual))
	})

	t.Run("ConcurrentRegistrationYieldsOneStore", func(t *testing.T) {
		// Two workers racing to register the same unknown identifier must
		// converge on a single store; the unique index on
		// (chain_slug, type, value) makes the loser fall back to lookup.
		rows := []types.NormalizedRow{{
			StoreIdentifier: "0777",
			Name:            "Mlijeko 1L",
			Price:           119,
			RowNumber:       1,
		}}

		var wg sync.WaitGroup
		results := make([]*persist.Result, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = engine.PersistStoreRows(ctx, "konzum", "0777", rows, persist.Options{AutoRegister: true})
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Equal(t, results[0].StoreID, results[1].StoreID)

		var storeCount, identCount int
		require.NoError(t, pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM stores s
				 JOIN store_identifiers si ON si.store_id = s.id
				 WHERE si.chain_slug = 'konzum' AND si.type = 'filename_code' AND si.value = '0777'),
				(SELECT COUNT(*) FROM store_identifiers
				 WHERE chain_slug = 'konzum' AND type = 'filename_code' AND value = '0777')
		`).Scan(&storeCount, &identCount))
		assert.Equal(t, 1, storeCount)
		assert.Equal(t, 1, identCount)
	})

	t.Run("UnresolvedGroupReportedStructured", func(t *testing.T) {
		require.NoError(t, registry.InitializeDefaultAdapters())
		adapter, err := registry.GetAdapter(config.ChainID("konzum"))
		require.NoError(t, err)

		p := pipeline.New(pool, nil, storage.StorageTypeLocal)
		entry := types.ExpandedFile{InnerFilename: "cjenik.csv", Type: types.FileTypeCSV}
		parsed := pipeline.ResultFromRows([]types.NormalizedRow{
			{StoreIdentifier: "unknown", Name: "Kruh", Price: 89, RowNumber: 1},
			{StoreIdentifier: "unknown", Name: "Sir", Price: 450, RowNumber: 2},
		})

		counters := p.PersistEntry(ctx, adapter, entry, parsed)
		assert.Equal(t, 2, counters.Failed)
		require.Len(t, counters.StoresNotFound, 1)
		assert.Equal(t, "unknown", counters.StoresNotFound[0].Identifier)
		assert.Equal(t, persist.IdentifierTypeUnresolved, counters.StoresNotFound[0].IdentifierType)
		assert.Equal(t, 2, counters.StoresNotFound[0].Rows)
	})

	t.Run("ImportSkipsKnownCodes", func(t *testing.T) {
		csvData := "name,code,address,city,postal_code\n" +
			"Konzum Ivanic,0613,Zitna 1a,Ivanic Grad,10310\n" +
			"Konzum Zagreb,0001,Ilica 5,Zagreb,10000\n"
		created, err := svc.ImportCSV(ctx, "konzum", strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Equal(t, 1, created, "existing code 0613 is skipped")

		listed, err := svc.List(ctx, stores.ListFilter{ChainSlug: "konzum"})
		require.NoError(t, err)
		assert.Len(t, listed, 4)
	})
}
