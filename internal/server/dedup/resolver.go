// Package dedup decides whether an upload duplicates a file its owner
// already stores.
package dedup

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Finder looks up an owner's files by checksum, oldest first.
type Finder interface {
	FindByChecksum(ctx context.Context, ownerID, checksum string) ([]*models.File, error)
}

// Resolution is the outcome of Resolve. A nil Reuse means store a new record.
type Resolution struct {
	Reuse *models.File
}

func (r Resolution) Duplicate() bool { return r.Reuse != nil }

// Resolve matches only ownerID's files. Without a target folder the oldest
// match is reused; with one, only a match in that folder is reused and a
// match elsewhere still yields a new record so the content is stored again.
func Resolve(ctx context.Context, finder Finder, checksum, ownerID string, targetFolderID *string) (Resolution, error) {
	matches, err := finder.FindByChecksum(ctx, ownerID, checksum)
	if err != nil {
		return Resolution{}, err
	}
	for _, f := range matches {
		if f.OwnerID != ownerID || f.Checksum != checksum {
			continue
		}
		if targetFolderID == nil || sameFolder(f.FolderID, targetFolderID) {
			return Resolution{Reuse: f}, nil
		}
	}
	return Resolution{}, nil
}

func sameFolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
