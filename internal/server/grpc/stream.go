package grpc

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
)

// chunkReader turns the data of consecutive client messages into a byte
// stream. next receives one message and returns its payload.
type chunkReader struct {
	next func() ([]byte, error)
	buf  []byte
	err  error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.buf, r.err = r.next()
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (s *GRPCServer) Upload(stream grpc.ServerStream) error {
	ctx := stream.Context()

	var first UploadChunk
	if err := stream.RecvMsg(&first); err != nil {
		return err
	}
	if first.Header == nil {
		return fmt.Errorf("%w: first upload message must carry a header", common.ErrorIncorrectMetadata)
	}
	h := first.Header

	body := &chunkReader{
		buf: first.Data,
		next: func() ([]byte, error) {
			var c UploadChunk
			if err := stream.RecvMsg(&c); err != nil {
				return nil, err
			}
			return c.Data, nil
		},
	}

	f, reused, err := s.files.Upload(ctx, services.UploadRequest{
		OwnerID:      userIDFromContext(ctx),
		FolderID:     h.FolderID,
		Name:         h.Name,
		OriginalName: h.OriginalName,
		MediaType:    h.MediaType,
		AccessLevel:  models.AccessLevel(h.AccessLevel),
		Tags:         h.Tags,
		Metadata:     h.Metadata,
		Body:         body,
	})
	if err != nil {
		return err
	}

	return stream.SendMsg(&UploadResponse{File: fileToWire(f), Deduplicated: reused})
}

func (s *GRPCServer) UploadVersion(stream grpc.ServerStream) error {
	ctx := stream.Context()

	var first VersionChunk
	if err := stream.RecvMsg(&first); err != nil {
		return err
	}
	if first.Header == nil || first.Header.FileID == "" {
		return fmt.Errorf("%w: first version message must name the file", common.ErrorIncorrectMetadata)
	}
	h := first.Header

	body := &chunkReader{
		buf: first.Data,
		next: func() ([]byte, error) {
			var c VersionChunk
			if err := stream.RecvMsg(&c); err != nil {
				return nil, err
			}
			return c.Data, nil
		},
	}

	f, err := s.files.UploadNewVersion(ctx, h.FileID, userIDFromContext(ctx), body, services.UploadMeta{
		OriginalName: h.OriginalName,
		MediaType:    h.MediaType,
	})
	if err != nil {
		return err
	}

	return stream.SendMsg(&FileResponse{File: fileToWire(f)})
}

func (s *GRPCServer) Download(stream grpc.ServerStream) error {
	ctx := stream.Context()

	var req FileRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	f, rc, err := s.files.Download(ctx, req.FileID, userIDFromContext(ctx))
	if err != nil {
		return err
	}
	defer rc.Close()

	buf := make([]byte, s.chunkSize)
	head := fileToWire(f)
	for {
		n, rerr := rc.Read(buf)
		if n > 0 || head != nil {
			if err := stream.SendMsg(&DownloadChunk{File: head, Data: buf[:n]}); err != nil {
				return err
			}
			head = nil
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("%w: read blob: %w", common.ErrIOFailure, rerr)
		}
	}
}
