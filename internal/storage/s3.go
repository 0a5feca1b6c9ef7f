package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config contains configuration for the S3-compatible storage backend
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3Storage implements Storage against any S3-compatible object store
type S3Storage struct {
	client *minio.Client
	bucket string
}

// NewS3Storage creates a new S3 storage backend and ensures the bucket exists
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put stores content at the given key with optional metadata
func (s *S3Storage) Put(ctx context.Context, key string, content []byte, metadata *Metadata) error {
	opts := minio.PutObjectOptions{}
	if metadata != nil {
		opts.ContentType = metadata.ContentType
		userMeta := map[string]string{}
		if metadata.OriginalName != "" {
			userMeta["original-name"] = metadata.OriginalName
		}
		if metadata.ChainSlug != "" {
			userMeta["chain-slug"] = metadata.ChainSlug
		}
		if metadata.SourceURL != "" {
			userMeta["source-url"] = metadata.SourceURL
		}
		if !metadata.DownloadedAt.IsZero() {
			userMeta["downloaded-at"] = metadata.DownloadedAt.Format(time.RFC3339)
		}
		for k, v := range metadata.Custom {
			userMeta[k] = v
		}
		opts.UserMetadata = userMeta
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), opts)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Get retrieves content from the given key
func (s *S3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return content, nil
}

// GetInfo retrieves file information without content
func (s *S3Storage) GetInfo(ctx context.Context, key string) (*FileInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return &FileInfo{
		Key:         key,
		Size:        stat.Size,
		Checksum:    strings.Trim(stat.ETag, `"`),
		ContentType: stat.ContentType,
		ModifiedAt:  stat.LastModified,
	}, nil
}

// Exists checks if a file exists at the given key
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return true, nil
}

// Delete removes a file at the given key
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// List returns all keys matching the given prefix
func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// GetChecksum returns the checksum for a file. S3 ETags are MD5 for simple
// uploads; content addressing via SHA-256 still happens at fetch time.
func (s *S3Storage) GetChecksum(ctx context.Context, key string) (string, error) {
	info, err := s.GetInfo(ctx, key)
	if err != nil {
		return "", err
	}
	return info.Checksum, nil
}
