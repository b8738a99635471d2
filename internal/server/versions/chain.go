// Package versions maintains a file's version chain: the current head plus
// an append-only list of archived heads.
//
// Version numbers are unique and the head's is greater than every archived
// one. AppendVersion also keeps Version == len(PreviousVersions)+1; Revert
// consumes its target, so after a revert the count falls behind the counter.
package versions

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Head describes new head content.
type Head struct {
	StoragePath string
	Size        int64
	Checksum    string
}

func archive(f *models.File) models.PriorVersion {
	return models.PriorVersion{
		StoragePath: f.StoragePath,
		Version:     f.Version,
		Size:        f.Size,
		Checksum:    f.Checksum,
		CreatedAt:   f.UpdatedAt,
	}
}

// AppendVersion archives the current head and installs head. Old bytes are
// kept for revert.
func AppendVersion(f *models.File, head Head, now time.Time) {
	f.PreviousVersions = append(f.PreviousVersions, archive(f))
	f.StoragePath = head.StoragePath
	f.Size = head.Size
	f.Checksum = head.Checksum
	f.Version++
	f.UpdatedAt = now
}

// Locate returns the archived entry for version n.
func Locate(f *models.File, n int) (models.PriorVersion, error) {
	for _, pv := range f.PreviousVersions {
		if pv.Version == n {
			return pv, nil
		}
	}
	return models.PriorVersion{}, fmt.Errorf("%w: %d", common.ErrVersionNotFound, n)
}

// Revert promotes archived version n to head. The current head is archived
// under its own version number, the target entry is consumed and the
// counter still moves forward. The caller must confirm the target blob
// exists before calling. Returns the consumed entry.
func Revert(f *models.File, n int, now time.Time) (models.PriorVersion, error) {
	idx := -1
	for i, pv := range f.PreviousVersions {
		if pv.Version == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.PriorVersion{}, fmt.Errorf("%w: %d", common.ErrVersionNotFound, n)
	}
	target := f.PreviousVersions[idx]

	rest := make([]models.PriorVersion, 0, len(f.PreviousVersions))
	rest = append(rest, f.PreviousVersions[:idx]...)
	rest = append(rest, f.PreviousVersions[idx+1:]...)
	rest = append(rest, archive(f))

	f.PreviousVersions = rest
	f.StoragePath = target.StoragePath
	f.Size = target.Size
	f.Checksum = target.Checksum
	f.Version++
	f.UpdatedAt = now

	return target, nil
}

// Check reports a broken chain: an archived version that is not positive,
// not below the head, or listed twice.
func Check(f *models.File) error {
	seen := make(map[int]struct{}, len(f.PreviousVersions))
	for _, pv := range f.PreviousVersions {
		if pv.Version < 1 || pv.Version >= f.Version {
			return fmt.Errorf("%w: file %s at version %d archives version %d",
				common.ErrorInternal, f.ID, f.Version, pv.Version)
		}
		if _, dup := seen[pv.Version]; dup {
			return fmt.Errorf("%w: file %s archives version %d twice",
				common.ErrorInternal, f.ID, pv.Version)
		}
		seen[pv.Version] = struct{}{}
	}
	return nil
}
