// Package blobstore maps storage paths to bytes on a durable medium.
// Paths are write-once: Put on an existing path fails with
// common.ErrAlreadyExists.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/google/uuid"
)

// Store is implemented by every backend.
type Store interface {
	// Put writes exactly size bytes from r to path.
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	// Get opens path for reading; common.ErrBlobMissing if absent.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes path and reports whether it existed.
	Delete(ctx context.Context, path string) (bool, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Presigner is implemented by backends that can hand out time-limited
// direct download links.
type Presigner interface {
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// NewStoragePath returns a fresh path for a blob owned by ownerID in
// folderID (nil = root): users/<owner>/<folder|root>/<yyyy>/<mm>/<dd>/<uuid>.
func NewStoragePath(ownerID string, folderID *string, now time.Time) string {
	folder := "root"
	if folderID != nil && *folderID != "" {
		folder = *folderID
	}
	return fmt.Sprintf("users/%s/%s/%04d/%02d/%02d/%s",
		ownerID, folder, now.Year(), int(now.Month()), now.Day(), uuid.NewString())
}

// DeleteResult counts what DeleteAll did.
type DeleteResult struct {
	Removed int
	Missing int
	Failed  int
}

// DeleteAll deletes every path. Paths that are already gone are logged and
// skipped; other failures are logged and returned joined after every path
// has been attempted.
func DeleteAll(ctx context.Context, s Store, log logging.Logger, paths []string) (DeleteResult, error) {
	var (
		errs []error
		res  DeleteResult
	)
	for _, p := range paths {
		ok, err := s.Delete(ctx, p)
		if err != nil {
			log.Error(ctx, "blob delete failed", "path", p, "error", err)
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
			res.Failed++
			continue
		}
		if !ok {
			log.Warn(ctx, "blob already absent", "path", p)
			res.Missing++
			continue
		}
		res.Removed++
	}
	return res, errors.Join(errs...)
}
