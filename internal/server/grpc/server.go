// Package grpc exposes the file and folder services as the
// filekeeper.FileKeeper gRPC service. Messages are plain Go structs encoded
// with a JSON codec, so no generated code is involved.
package grpc

import (
	"context"
	"io"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
)

const defaultChunkSize = 64 * 1024

// FileService is the part of services.FileService the transport uses.
type FileService interface {
	Upload(ctx context.Context, req services.UploadRequest) (*models.File, bool, error)
	UploadNewVersion(ctx context.Context, fileID, requesterID string, r io.Reader, meta services.UploadMeta) (*models.File, error)
	Revert(ctx context.Context, fileID, ownerID string, n int) (*models.File, error)
	UpdateMetadata(ctx context.Context, fileID, requesterID string, patch services.MetadataPatch) (*models.File, error)
	Delete(ctx context.Context, fileID, ownerID string) error
	ShareFile(ctx context.Context, fileID, ownerID, granteeID string, perm models.Permission) (*models.File, error)
	Get(ctx context.Context, fileID, requesterID string) (*models.File, error)
	Download(ctx context.Context, fileID, requesterID string) (*models.File, io.ReadCloser, error)
	DownloadURL(ctx context.Context, fileID, requesterID string) (*models.DownloadLink, error)
	List(ctx context.Context, ownerID string, filter services.ListFilter) ([]*models.File, error)
	Search(ctx context.Context, ownerID string, q services.SearchQuery) (*services.SearchResult, error)
	Usage(ctx context.Context, ownerID string) (*models.Usage, error)
	AccessHistory(ctx context.Context, fileID, ownerID string, limit int) ([]*models.FileAccess, error)
}

// FolderService is the part of services.FolderService the transport uses.
type FolderService interface {
	CreateFolder(ctx context.Context, ownerID, name string, parentID *string, level models.AccessLevel) (*models.Folder, error)
	GetFolder(ctx context.Context, folderID, requesterID string) (*models.Folder, error)
	ListFolders(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error)
	UpdateFolder(ctx context.Context, folderID, ownerID string, patch services.FolderPatch) (*models.Folder, error)
	ShareFolder(ctx context.Context, folderID, ownerID, granteeID string, perm models.Permission) (*models.Folder, error)
	DeleteFolder(ctx context.Context, folderID, ownerID string) error
}

type GRPCServer struct {
	address   string
	files     FileService
	folders   FolderService
	metrics   *metrics.Metrics
	logger    logging.Logger
	jwtSecret []byte
	chunkSize int
}

func NewGRPCServer(a string, l logging.Logger, fs FileService, ds FolderService, m *metrics.Metrics, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		files:     fs,
		folders:   ds,
		metrics:   m,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
		chunkSize: defaultChunkSize,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.errorInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamErrorInterceptor, s.streamAccessTokenInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

// Run listens on the configured address until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully once ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
