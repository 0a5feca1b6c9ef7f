package database

import (
	"time"
)

// Chain represents a retail chain (Konzum, Lidl, etc.)
type Chain struct {
	Slug      string    `json:"slug"`     // konzum, lidl, plodine, etc.
	Name      string    `json:"name"`     // Human-readable name
	Website   *string   `json:"website"`  // Optional website URL
	LogoURL   *string   `json:"logo_url"` // Optional logo URL
	CreatedAt time.Time `json:"created_at"`
}

// Store represents a physical or virtual store location
type Store struct {
	ID                 string    `json:"id"`                    // prefixed id (store_...)
	ChainSlug          string    `json:"chain_slug"`            // FK to chains.slug
	Name               string    `json:"name"`                  // Store name
	Address            *string   `json:"address"`               // Street address
	City               *string   `json:"city"`                  // City name
	PostalCode         *string   `json:"postal_code"`           // Postal/ZIP code
	Latitude           *string   `json:"latitude"`              // Latitude as string
	Longitude          *string   `json:"longitude"`             // Longitude as string
	IsVirtual          bool      `json:"is_virtual"`            // Auto-registered, not yet geocoded
	PriceSourceStoreID *string   `json:"price_source_store_id"` // ID of physical store for virtual stores
	Status             string    `json:"status"`                // 'active' | 'pending'
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StoreIdentifier maps a store to various identifier types
type StoreIdentifier struct {
	ID        string    `json:"id"`       // prefixed id (sid_...)
	StoreID   string    `json:"store_id"` // FK to stores.id
	Type      string    `json:"type"`     // 'filename_code', 'portal_id', 'url_param', etc.
	Value     string    `json:"value"`    // The identifier value
	CreatedAt time.Time `json:"created_at"`
}

// RetailerItem represents a product as sold by a retailer
type RetailerItem struct {
	ID           string    `json:"id"`            // prefixed id (ritem_...)
	ChainSlug    string    `json:"chain_slug"`    // FK to chains.slug
	ExternalID   *string   `json:"external_id"`   // Retailer's internal ID
	Name         string    `json:"name"`          // Item name
	Description  *string   `json:"description"`   // Item description
	Category     *string   `json:"category"`      // Category
	Subcategory  *string   `json:"subcategory"`   // Subcategory
	Brand        *string   `json:"brand"`         // Brand name
	Unit         *string   `json:"unit"`          // kg, l, kom, etc.
	UnitQuantity *string   `json:"unit_quantity"` // "1", "0.5", "500g", etc.
	ImageURL     *string   `json:"image_url"`     // Image URL
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RetailerItemBarcode maps a retailer item to its barcodes
type RetailerItemBarcode struct {
	ID             string    `json:"id"`               // prefixed id (bc_...)
	RetailerItemID string    `json:"retailer_item_id"` // FK to retailer_items.id
	Barcode        string    `json:"barcode"`          // EAN-13, EAN-8, etc.
	IsPrimary      bool      `json:"is_primary"`       // Whether this is a primary barcode
	CreatedAt      time.Time `json:"created_at"`
}

// StoreItemState tracks the current price state of an item at a store.
// One row per (store, retailer_item).
type StoreItemState struct {
	ID             string     `json:"id"`             // prefixed id (sis_...)
	StoreID        string     `json:"store_id"`       // FK to stores.id
	RetailerItemID string     `json:"retailer_item_id"`
	CurrentPrice   int        `json:"current_price"`  // Price in cents
	PreviousPrice  *int       `json:"previous_price"` // Previous price for comparison
	DiscountPrice  *int       `json:"discount_price"` // Promotional price
	DiscountStart  *time.Time `json:"discount_start"`
	DiscountEnd    *time.Time `json:"discount_end"`
	InStock        bool       `json:"in_stock"`
	// Price transparency fields (Croatian regulation)
	UnitPrice             *int       `json:"unit_price"`               // Price per base unit in cents
	UnitPriceBaseQuantity *string    `json:"unit_price_base_quantity"` // e.g. "1", "100"
	UnitPriceBaseUnit     *string    `json:"unit_price_base_unit"`     // e.g. "kg", "l", "kom"
	LowestPrice30d        *int       `json:"lowest_price_30d"`         // Lowest price in last 30 days
	AnchorPrice           *int       `json:"anchor_price"`             // "sidrena cijena" anchor price
	AnchorPriceAsOf       *time.Time `json:"anchor_price_as_of"`
	PriceSignature        string     `json:"price_signature"` // Gates price-period creation
	LastSeenAt            time.Time  `json:"last_seen_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// PricePeriod is one interval of a (store, item) price history. At most one
// open period (ended_at IS NULL) exists per store_item_state row.
type PricePeriod struct {
	ID               string     `json:"id"` // prefixed id (pp_...)
	StoreItemStateID string     `json:"store_item_state_id"`
	Price            int        `json:"price"`
	DiscountPrice    *int       `json:"discount_price"`
	DiscountStart    *time.Time `json:"discount_start"`
	DiscountEnd      *time.Time `json:"discount_end"`
	UnitPrice        *int       `json:"unit_price"`
	LowestPrice30d   *int       `json:"lowest_price_30d"`
	AnchorPrice      *int       `json:"anchor_price"`
	PriceSignature   string     `json:"price_signature"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at"` // NULL while the period is open
	CreatedAt        time.Time  `json:"created_at"`
}

// IngestionRun represents a single ingestion run for a chain
type IngestionRun struct {
	ID               string     `json:"id"`         // prefixed id (run_...)
	ChainSlug        string     `json:"chain_slug"`  // FK to chains.slug
	TargetDate       *string    `json:"target_date"` // YYYY-MM-DD, nil means run date
	Source           string     `json:"source"`      // 'cli', 'worker', 'scheduled'
	Status           string     `json:"status"`     // 'pending', 'running', 'completed', 'failed'
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	TotalFiles       int        `json:"total_files"`
	ProcessedFiles   int        `json:"processed_files"`
	TotalEntries     int        `json:"total_entries"`
	ProcessedEntries int        `json:"processed_entries"`
	ErrorCount       int        `json:"error_count"`
	Metadata         *string    `json:"metadata"` // JSON for additional run info
	// Rerun support
	ParentRunID   *string   `json:"parent_run_id"`   // Run this one re-processes
	RerunType     *string   `json:"rerun_type"`      // 'run', 'file', 'chunk'
	RerunTargetID *string   `json:"rerun_target_id"` // ID of run/file/chunk being rerun
	CreatedAt     time.Time `json:"created_at"`
}

// IngestionFile represents a file being ingested
type IngestionFile struct {
	ID          string     `json:"id"`        // prefixed id (igf_...)
	RunID       string     `json:"run_id"`    // FK to ingestion_runs.id
	Filename    string     `json:"filename"`  // Original filename
	FileType    string     `json:"file_type"` // 'csv', 'xml', 'xlsx', 'zip'
	FileSize    *int       `json:"file_size"` // Size in bytes
	FileHash    *string    `json:"file_hash"` // SHA-256 of content, for deduplication
	StorageKey  *string    `json:"storage_key"`
	Status      string     `json:"status"`      // 'pending', 'processing', 'completed', 'failed'
	EntryCount  *int       `json:"entry_count"` // Number of entries
	ProcessedAt *time.Time `json:"processed_at"`
	Metadata    *string    `json:"metadata"` // JSON for file-specific info
	// Chunking support
	TotalChunks     *int      `json:"total_chunks"`
	ProcessedChunks *int      `json:"processed_chunks"`
	ChunkSize       *int      `json:"chunk_size"` // Rows per chunk
	CreatedAt       time.Time `json:"created_at"`
}

// IngestionChunk is one slice of a large parse result, persisted independently.
type IngestionChunk struct {
	ID          string     `json:"id"` // prefixed id (chk_...)
	FileID      string     `json:"file_id"`
	RunID       string     `json:"run_id"`
	ChunkIndex  int        `json:"chunk_index"` // zero-based
	StartRow    int        `json:"start_row"`
	EndRow      int        `json:"end_row"`
	RowCount    int        `json:"row_count"`
	StorageKey  string     `json:"storage_key"` // Key of the serialized rows in blob storage
	Status      string     `json:"status"`      // 'pending', 'processing', 'completed', 'failed'
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IngestionError represents an error during ingestion
type IngestionError struct {
	ID           string    `json:"id"`       // prefixed id (ierr_...)
	RunID        string    `json:"run_id"`   // FK to ingestion_runs.id
	FileID       *string   `json:"file_id"`  // FK to ingestion_files.id
	ChunkID      *string   `json:"chunk_id"` // FK to ingestion_chunks.id
	Phase        string    `json:"phase"`    // 'discover', 'fetch', 'expand', 'parse', 'persist'
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	ErrorDetails *string   `json:"error_details"` // JSON with context
	Severity     string    `json:"severity"`      // 'warning', 'error', 'critical'
	CreatedAt    time.Time `json:"created_at"`
}
