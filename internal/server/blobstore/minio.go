package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for the minio backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// minioAPI is the part of *minio.Client used by MinioStore.
type minioAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
}

// MinioStore stores blobs through the minio client.
type MinioStore struct {
	client minioAPI
	bucket string
}

// NewMinioStore connects and creates the bucket when it does not exist.
func NewMinioStore(ctx context.Context, c MinioConfig) (*MinioStore, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", c.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{Region: c.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", c.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: c.Bucket}, nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func (m *MinioStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	ok, err := m.Exists(ctx, path)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("blob %s: %w", path, common.ErrAlreadyExists)
	}
	if _, err := m.client.PutObject(ctx, m.bucket, path, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("%w: put object: %w", common.ErrIOFailure, err)
	}
	return nil
}

// Get stats the object first because minio.Object defers errors to the first read.
func (m *MinioStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	ok, err := m.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, common.ErrBlobMissing)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get object: %w", common.ErrIOFailure, err)
	}
	return obj, nil
}

func (m *MinioStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isMinioNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat object: %w", common.ErrIOFailure, err)
}

func (m *MinioStore) Delete(ctx context.Context, path string) (bool, error) {
	ok, err := m.Exists(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("%w: remove object: %w", common.ErrIOFailure, err)
	}
	return true, nil
}

func (m *MinioStore) PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, path, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

var (
	_ Store     = (*MinioStore)(nil)
	_ Presigner = (*MinioStore)(nil)
)
