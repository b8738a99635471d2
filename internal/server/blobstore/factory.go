package blobstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/server/config"
)

// NewFromConfig creates the Store selected by cfg.BlobBackend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendMemory:
		return NewMemoryStore(), nil
	case config.BlobBackendFilesystem:
		if cfg.FSBlobRoot == "" {
			return nil, fmt.Errorf("filesystem blob backend requires fs_blob_root to be set")
		}
		return NewFilesystemStore(cfg.FSBlobRoot)
	case config.BlobBackendS3:
		return NewS3Store(ctx, S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.BlobBackendMinio:
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.S3RootUser,
			SecretKey: cfg.S3RootPassword,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.BlobBackend)
	}
}
