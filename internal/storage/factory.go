package storage

import (
	"context"
	"fmt"
)

// Config selects and configures a storage backend
type Config struct {
	Type      StorageType
	LocalPath string
	S3        S3Config
}

// New creates a storage backend from config
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		path := cfg.LocalPath
		if path == "" {
			path = "./data/storage"
		}
		return NewLocalStorage(path)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
