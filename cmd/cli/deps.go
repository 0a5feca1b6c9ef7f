package main

import (
	"context"
	"fmt"

	"github.com/damir5/kosarica-sub000/internal/storage"
)

// buildStorage constructs the blob storage backend from the loaded config.
func buildStorage(ctx context.Context) (storage.Storage, storage.StorageType, error) {
	storeType := storage.StorageTypeLocal
	storageCfg := storage.Config{Type: storeType, LocalPath: "./data/archives"}

	if cfg != nil {
		storeType = storage.StorageType(cfg.Storage.Type)
		if storeType == "" {
			storeType = storage.StorageTypeLocal
		}
		storageCfg = storage.Config{
			Type:      storeType,
			LocalPath: cfg.Storage.BasePath,
			S3: storage.S3Config{
				Endpoint:  cfg.Storage.S3Endpoint,
				AccessKey: cfg.Storage.S3AccessKey,
				SecretKey: cfg.Storage.S3SecretKey,
				Bucket:    cfg.Storage.S3Bucket,
				Region:    cfg.Storage.S3Region,
				UseSSL:    cfg.Storage.S3UseSSL,
			},
		}
	}

	store, err := storage.New(ctx, storageCfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize %s storage: %w", storeType, err)
	}
	return store, storeType, nil
}
