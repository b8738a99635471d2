package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrVersionNotFound, codes.NotFound},
		{fmt.Errorf("%w: p", common.ErrParentNotFound), codes.NotFound},
		{common.ErrorUnauthorized, codes.PermissionDenied},
		{common.ErrAlreadyShared, codes.AlreadyExists},
		{common.ErrAlreadyExists, codes.AlreadyExists},
		{common.ErrFolderNotEmpty, codes.FailedPrecondition},
		{common.ErrBlobMissing, codes.DataLoss},
		{common.ErrQuotaInconsistent, codes.Internal},
		{fmt.Errorf("%w: disk: %w", common.ErrIOFailure, errors.New("eio")), codes.Unavailable},
		{common.ErrorIncorrectMetadata, codes.InvalidArgument},
		{common.ErrorTooLarge, codes.ResourceExhausted},
		{common.ErrNotSupported, codes.Unimplemented},
		{common.ErrInvalidToken, codes.Unauthenticated},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Aborted, "x"), codes.Aborted},
		{errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}

	assert.NoError(t, toStatus(nil))
}

func TestToStatus_HidesInternalDetail(t *testing.T) {
	st := status.Convert(toStatus(errors.New("pq: password authentication failed")))
	assert.Equal(t, common.ErrorInternal.Error(), st.Message())

	st = status.Convert(toStatus(fmt.Errorf("debit user u1: %w", common.ErrQuotaInconsistent)))
	assert.Equal(t, common.ErrQuotaInconsistent.Error(), st.Message())
}
