package grpc

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
)

func (s *GRPCServer) Ping(ctx context.Context, req *Empty) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) GetFile(ctx context.Context, req *FileRequest) (*FileResponse, error) {
	f, err := s.files.Get(ctx, req.FileID, userIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &FileResponse{File: fileToWire(f)}, nil
}

func (s *GRPCServer) DeleteFile(ctx context.Context, req *FileRequest) (*Empty, error) {
	if err := s.files.Delete(ctx, req.FileID, userIDFromContext(ctx)); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *GRPCServer) RevertFile(ctx context.Context, req *RevertRequest) (*FileResponse, error) {
	f, err := s.files.Revert(ctx, req.FileID, userIDFromContext(ctx), req.Version)
	if err != nil {
		return nil, err
	}
	return &FileResponse{File: fileToWire(f)}, nil
}

func (s *GRPCServer) UpdateFileMetadata(ctx context.Context, req *UpdateMetadataRequest) (*FileResponse, error) {
	f, err := s.files.UpdateMetadata(ctx, req.FileID, userIDFromContext(ctx), req.patch())
	if err != nil {
		return nil, err
	}
	return &FileResponse{File: fileToWire(f)}, nil
}

func (s *GRPCServer) ShareFile(ctx context.Context, req *ShareRequest) (*FileResponse, error) {
	f, err := s.files.ShareFile(ctx, req.ID, userIDFromContext(ctx), req.GranteeID, models.Permission(req.Permission))
	if err != nil {
		return nil, err
	}
	return &FileResponse{File: fileToWire(f)}, nil
}

func (s *GRPCServer) ListFiles(ctx context.Context, req *ListFilesRequest) (*FilesResponse, error) {
	found, err := s.files.List(ctx, userIDFromContext(ctx), services.ListFilter{
		FolderID: req.FolderID,
		Tag:      req.Tag,
		Search:   req.Search,
	})
	if err != nil {
		return nil, err
	}
	return &FilesResponse{Files: filesToWire(found)}, nil
}

func (s *GRPCServer) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	res, err := s.files.Search(ctx, userIDFromContext(ctx), services.SearchQuery{
		Query:    req.Query,
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Files: filesToWire(res.Files), Folders: foldersToWire(res.Folders)}, nil
}

func (s *GRPCServer) GetUsage(ctx context.Context, req *Empty) (*UsageResponse, error) {
	u, err := s.files.Usage(ctx, userIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &UsageResponse{UserID: u.UserID, UsedBytes: u.UsedBytes, UpdatedAt: u.UpdatedAt}, nil
}

func (s *GRPCServer) DownloadURL(ctx context.Context, req *FileRequest) (*DownloadURLResponse, error) {
	link, err := s.files.DownloadURL(ctx, req.FileID, userIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &DownloadURLResponse{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}

func (s *GRPCServer) AccessHistory(ctx context.Context, req *AccessHistoryRequest) (*AccessHistoryResponse, error) {
	events, err := s.files.AccessHistory(ctx, req.FileID, userIDFromContext(ctx), req.Limit)
	if err != nil {
		return nil, err
	}
	resp := &AccessHistoryResponse{Events: make([]AccessEvent, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, AccessEvent{
			UserID:     ev.UserID,
			AccessType: string(ev.AccessType),
			Timestamp:  ev.Timestamp,
		})
	}
	return resp, nil
}

func (s *GRPCServer) CreateFolder(ctx context.Context, req *CreateFolderRequest) (*FolderResponse, error) {
	f, err := s.folders.CreateFolder(ctx, userIDFromContext(ctx), req.Name, req.ParentID, models.AccessLevel(req.AccessLevel))
	if err != nil {
		return nil, err
	}
	return &FolderResponse{Folder: folderToWire(f)}, nil
}

func (s *GRPCServer) GetFolder(ctx context.Context, req *FolderRequest) (*FolderResponse, error) {
	f, err := s.folders.GetFolder(ctx, req.FolderID, userIDFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return &FolderResponse{Folder: folderToWire(f)}, nil
}

func (s *GRPCServer) ListFolders(ctx context.Context, req *ListFoldersRequest) (*FoldersResponse, error) {
	found, err := s.folders.ListFolders(ctx, userIDFromContext(ctx), req.ParentID)
	if err != nil {
		return nil, err
	}
	return &FoldersResponse{Folders: foldersToWire(found)}, nil
}

func (s *GRPCServer) UpdateFolder(ctx context.Context, req *UpdateFolderRequest) (*FolderResponse, error) {
	f, err := s.folders.UpdateFolder(ctx, req.FolderID, userIDFromContext(ctx), services.FolderPatch{
		Name:        req.Name,
		AccessLevel: levelPtr(req.AccessLevel),
	})
	if err != nil {
		return nil, err
	}
	return &FolderResponse{Folder: folderToWire(f)}, nil
}

func (s *GRPCServer) ShareFolder(ctx context.Context, req *ShareRequest) (*FolderResponse, error) {
	f, err := s.folders.ShareFolder(ctx, req.ID, userIDFromContext(ctx), req.GranteeID, models.Permission(req.Permission))
	if err != nil {
		return nil, err
	}
	return &FolderResponse{Folder: folderToWire(f)}, nil
}

func (s *GRPCServer) DeleteFolder(ctx context.Context, req *FolderRequest) (*Empty, error) {
	if err := s.folders.DeleteFolder(ctx, req.FolderID, userIDFromContext(ctx)); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}
