// Package hasher fingerprints uploads. Incoming bytes are spooled to disk
// while being digested so the complete content is hashed before any
// storage decision is made, and can be re-read afterwards.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filex"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a digest.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
)

func newDigest(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case SHA256, "":
		return sha256.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", alg)
	}
}

// Hasher spools and fingerprints upload streams.
type Hasher struct {
	dir      string
	alg      Algorithm
	maxBytes int64
}

// New returns a Hasher spooling into dir. maxBytes <= 0 disables the size limit.
func New(dir string, alg Algorithm, maxBytes int64) (*Hasher, error) {
	if _, err := newDigest(alg); err != nil {
		return nil, err
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("spool dir: %w", err)
	}
	if alg == "" {
		alg = SHA256
	}
	return &Hasher{dir: abs, alg: alg, maxBytes: maxBytes}, nil
}

// Algorithm reports the digest in use.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// Spool is a fully received upload held on local disk.
type Spool struct {
	path     string
	Checksum string
	Size     int64
}

// Open returns a fresh reader over the spooled bytes.
func (s *Spool) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open spool: %w", common.ErrIOFailure, err)
	}
	return f, nil
}

// Remove deletes the spool file. Removing twice is not an error.
func (s *Spool) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Hash consumes r to the end. Read failures are wrapped in
// common.ErrIOFailure and leave no spool behind; a stream longer than the
// configured limit fails with common.ErrorTooLarge.
func (h *Hasher) Hash(ctx context.Context, r io.Reader) (*Spool, error) {
	digest, _ := newDigest(h.alg)

	tmp, err := os.CreateTemp(h.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create spool: %w", common.ErrIOFailure, err)
	}
	path := tmp.Name()

	fail := func(err error) (*Spool, error) {
		_ = tmp.Close()
		_ = os.Remove(path)
		return nil, err
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if h.maxBytes > 0 {
		src = io.LimitReader(src, h.maxBytes+1)
	}

	n, err := io.Copy(io.MultiWriter(tmp, digest), src)
	if err != nil {
		return fail(fmt.Errorf("%w: read upload: %w", common.ErrIOFailure, err))
	}
	if h.maxBytes > 0 && n > h.maxBytes {
		return fail(fmt.Errorf("%w: more than %d bytes", common.ErrorTooLarge, h.maxBytes))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("%w: sync spool: %w", common.ErrIOFailure, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: close spool: %w", common.ErrIOFailure, err)
	}

	return &Spool{
		path:     path,
		Checksum: hex.EncodeToString(digest.Sum(nil)),
		Size:     n,
	}, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
