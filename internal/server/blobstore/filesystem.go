package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filex"
)

// FilesystemStore keeps blobs as files under root, one file per storage
// path. Writes go through a temp file and a rename so readers never see a
// partial blob.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates root if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("blob root: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

func (s *FilesystemStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid blob path %q", common.ErrorIncorrectMetadata, path)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FilesystemStore) Put(_ context.Context, path string, r io.Reader, size int64, _ string) error {
	dest, err := s.resolve(path)
	if err != nil {
		return err
	}
	exists, err := filex.Exists(dest)
	if err != nil {
		return fmt.Errorf("%w: stat blob: %w", common.ErrIOFailure, err)
	}
	if exists {
		return fmt.Errorf("blob %s: %w", path, common.ErrAlreadyExists)
	}
	if err := filex.WriteAtomic(dest, r, size); err != nil {
		return fmt.Errorf("%w: %w", common.ErrIOFailure, err)
	}
	return nil
}

func (s *FilesystemStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	src, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", path, common.ErrBlobMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open blob: %w", common.ErrIOFailure, err)
	}
	return f, nil
}

func (s *FilesystemStore) Delete(_ context.Context, path string) (bool, error) {
	p, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: remove blob: %w", common.ErrIOFailure, err)
	}
	return true, nil
}

func (s *FilesystemStore) Exists(_ context.Context, path string) (bool, error) {
	p, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	ok, err := filex.Exists(p)
	if err != nil {
		return false, fmt.Errorf("%w: stat blob: %w", common.ErrIOFailure, err)
	}
	return ok, nil
}

var _ Store = (*FilesystemStore)(nil)
