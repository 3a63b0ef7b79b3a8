package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// Open builds the store selected by cfg.StorageDriver. For S3 the upload and
// result buckets are created when missing.
func Open(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverFilesystem:
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		return NewFileStore(path, cfg.StorageBaseURL)
	case infra.StorageDriverS3:
		store, err := NewS3Store(ctx, S3Options{
			Endpoint:       cfg.StorageEndpoint,
			PublicEndpoint: cfg.StoragePublicEndpoint,
			AccessKey:      cfg.StorageAccessKey,
			SecretKey:      cfg.StorageSecretKey,
			Region:         cfg.StorageRegion,
			UseSSL:         cfg.StorageUseSSL,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBuckets(ctx, cfg.BucketUploads, cfg.BucketResults); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", cfg.StorageDriver)
	}
}
