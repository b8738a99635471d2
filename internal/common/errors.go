// Package common defines shared constants and sentinel errors used across
// the filekeeper server layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("not authorized")
	ErrAlreadyExists  = errors.New("already exists")

	// Validation errors.
	ErrorIncorrectMetadata = errors.New("incorrect metadata")
	ErrorTooLarge          = errors.New("upload exceeds size limit")

	// Storage engine errors.
	ErrVersionNotFound   = fmt.Errorf("version %w", ErrorNotFound)
	ErrParentNotFound    = fmt.Errorf("parent folder %w", ErrorNotFound)
	ErrAlreadyShared     = fmt.Errorf("share grant %w", ErrAlreadyExists)
	ErrFolderNotEmpty    = errors.New("folder not empty")
	ErrBlobMissing       = errors.New("blob missing from store")
	ErrQuotaInconsistent = errors.New("quota ledger inconsistent")
	ErrIOFailure         = errors.New("io failure")
	ErrNotSupported      = errors.New("not supported by storage backend")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
