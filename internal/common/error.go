package common

import "errors"

// Kind returns a short, stable label for err, used for metrics and logs.
// Unknown errors are reported as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrVersionNotFound):
		return "version_not_found"
	case errors.Is(err, ErrParentNotFound):
		return "parent_not_found"
	case errors.Is(err, ErrorNotFound):
		return "not_found"
	case errors.Is(err, ErrorUnauthorized):
		return "not_authorized"
	case errors.Is(err, ErrAlreadyShared):
		return "already_shared"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrFolderNotEmpty):
		return "folder_not_empty"
	case errors.Is(err, ErrBlobMissing):
		return "blob_missing"
	case errors.Is(err, ErrQuotaInconsistent):
		return "quota_inconsistent"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	case errors.Is(err, ErrIOFailure):
		return "io_failure"
	case errors.Is(err, ErrorIncorrectMetadata):
		return "invalid_argument"
	case errors.Is(err, ErrorTooLarge):
		return "too_large"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
