package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

var (
	uploadStreamDesc   = grpc.StreamDesc{StreamName: "Upload", ClientStreams: true}
	versionStreamDesc  = grpc.StreamDesc{StreamName: "UploadVersion", ClientStreams: true}
	downloadStreamDesc = grpc.StreamDesc{StreamName: "Download", ServerStreams: true}
)

// Client calls a FileKeeper server on behalf of the holder of accessToken.
type Client struct {
	conn        *grpc.ClientConn
	accessToken string
}

// NewClient connects to target without transport security. Extra options
// are appended and may override that.
func NewClient(target, accessToken string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, accessToken: accessToken}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) withToken(ctx context.Context) context.Context {
	if c.accessToken == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, c.accessToken)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(c.withToken(ctx), fullMethod(method), req, resp)
}

func (c *Client) Ping(ctx context.Context) error {
	var resp PingResponse
	return c.invoke(ctx, "Ping", &Empty{}, &resp)
}

// sendBody streams r in chunks built by wrap and returns once the server
// has answered into resp.
func sendBody(cs grpc.ClientStream, r io.Reader, wrap func([]byte) any, resp any) error {
	buf := make([]byte, defaultChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := cs.SendMsg(wrap(buf[:n])); err != nil {
				if errors.Is(err, io.EOF) {
					// the server already answered; RecvMsg has its status
					break
				}
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read upload: %w", rerr)
		}
	}
	if err := cs.CloseSend(); err != nil {
		return err
	}
	return cs.RecvMsg(resp)
}

// Upload stores the content of r as a new file described by h.
func (c *Client) Upload(ctx context.Context, h UploadHeader, r io.Reader) (*UploadResponse, error) {
	cs, err := c.conn.NewStream(c.withToken(ctx), &uploadStreamDesc, fullMethod("Upload"))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&UploadChunk{Header: &h}); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var resp UploadResponse
	err = sendBody(cs, r, func(b []byte) any { return &UploadChunk{Data: b} }, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadVersion replaces the head of h.FileID with the content of r.
func (c *Client) UploadVersion(ctx context.Context, h VersionHeader, r io.Reader) (*File, error) {
	cs, err := c.conn.NewStream(c.withToken(ctx), &versionStreamDesc, fullMethod("UploadVersion"))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&VersionChunk{Header: &h}); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var resp FileResponse
	err = sendBody(cs, r, func(b []byte) any { return &VersionChunk{Data: b} }, &resp)
	if err != nil {
		return nil, err
	}
	return resp.File, nil
}

// Download writes the head content of fileID to w.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (*File, error) {
	cs, err := c.conn.NewStream(c.withToken(ctx), &downloadStreamDesc, fullMethod("Download"))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&FileRequest{FileID: fileID}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}

	var file *File
	for {
		var chunk DownloadChunk
		err := cs.RecvMsg(&chunk)
		if errors.Is(err, io.EOF) {
			return file, nil
		}
		if err != nil {
			return nil, err
		}
		if chunk.File != nil {
			file = chunk.File
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return nil, err
		}
	}
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var resp FileResponse
	if err := c.invoke(ctx, "GetFile", &FileRequest{FileID: fileID}, &resp); err != nil {
		return nil, err
	}
	return resp.File, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.invoke(ctx, "DeleteFile", &FileRequest{FileID: fileID}, &Empty{})
}

func (c *Client) RevertFile(ctx context.Context, fileID string, version int) (*File, error) {
	var resp FileResponse
	if err := c.invoke(ctx, "RevertFile", &RevertRequest{FileID: fileID, Version: version}, &resp); err != nil {
		return nil, err
	}
	return resp.File, nil
}

func (c *Client) UpdateFileMetadata(ctx context.Context, req *UpdateMetadataRequest) (*File, error) {
	var resp FileResponse
	if err := c.invoke(ctx, "UpdateFileMetadata", req, &resp); err != nil {
		return nil, err
	}
	return resp.File, nil
}

func (c *Client) ShareFile(ctx context.Context, fileID, granteeID, permission string) (*File, error) {
	var resp FileResponse
	req := &ShareRequest{ID: fileID, GranteeID: granteeID, Permission: permission}
	if err := c.invoke(ctx, "ShareFile", req, &resp); err != nil {
		return nil, err
	}
	return resp.File, nil
}

func (c *Client) ListFiles(ctx context.Context, req *ListFilesRequest) ([]*File, error) {
	var resp FilesResponse
	if err := c.invoke(ctx, "ListFiles", req, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.invoke(ctx, "Search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Usage(ctx context.Context) (*UsageResponse, error) {
	var resp UsageResponse
	if err := c.invoke(ctx, "GetUsage", &Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DownloadURL(ctx context.Context, fileID string) (*DownloadURLResponse, error) {
	var resp DownloadURLResponse
	if err := c.invoke(ctx, "DownloadURL", &FileRequest{FileID: fileID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AccessHistory(ctx context.Context, fileID string, limit int) ([]AccessEvent, error) {
	var resp AccessHistoryResponse
	if err := c.invoke(ctx, "AccessHistory", &AccessHistoryRequest{FileID: fileID, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) CreateFolder(ctx context.Context, req *CreateFolderRequest) (*Folder, error) {
	var resp FolderResponse
	if err := c.invoke(ctx, "CreateFolder", req, &resp); err != nil {
		return nil, err
	}
	return resp.Folder, nil
}

func (c *Client) GetFolder(ctx context.Context, folderID string) (*Folder, error) {
	var resp FolderResponse
	if err := c.invoke(ctx, "GetFolder", &FolderRequest{FolderID: folderID}, &resp); err != nil {
		return nil, err
	}
	return resp.Folder, nil
}

func (c *Client) ListFolders(ctx context.Context, parentID *string) ([]*Folder, error) {
	var resp FoldersResponse
	if err := c.invoke(ctx, "ListFolders", &ListFoldersRequest{ParentID: parentID}, &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

func (c *Client) UpdateFolder(ctx context.Context, req *UpdateFolderRequest) (*Folder, error) {
	var resp FolderResponse
	if err := c.invoke(ctx, "UpdateFolder", req, &resp); err != nil {
		return nil, err
	}
	return resp.Folder, nil
}

func (c *Client) ShareFolder(ctx context.Context, folderID, granteeID, permission string) (*Folder, error) {
	var resp FolderResponse
	req := &ShareRequest{ID: folderID, GranteeID: granteeID, Permission: permission}
	if err := c.invoke(ctx, "ShareFolder", req, &resp); err != nil {
		return nil, err
	}
	return resp.Folder, nil
}

func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	return c.invoke(ctx, "DeleteFolder", &FolderRequest{FolderID: folderID}, &Empty{})
}
