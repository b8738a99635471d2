package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

// toStatus maps service errors to gRPC statuses. Errors that already carry
// a status pass through. Internal failures get a fixed message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrFolderNotEmpty):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrBlobMissing):
		return status.Error(codes.DataLoss, common.ErrBlobMissing.Error())
	case errors.Is(err, common.ErrQuotaInconsistent):
		return status.Error(codes.Internal, common.ErrQuotaInconsistent.Error())
	case errors.Is(err, common.ErrNotSupported):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, common.ErrIOFailure):
		return status.Error(codes.Unavailable, common.ErrIOFailure.Error())
	case errors.Is(err, common.ErrorIncorrectMetadata):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorTooLarge):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
}
