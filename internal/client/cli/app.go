package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/client/config"
	fkgrpc "github.com/dmitrijs2005/filekeeper/internal/server/grpc"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// api is the part of the filekeeper client the commands rely on.
type api interface {
	Ping(ctx context.Context) error
	Upload(ctx context.Context, h fkgrpc.UploadHeader, r io.Reader) (*fkgrpc.UploadResponse, error)
	UploadVersion(ctx context.Context, h fkgrpc.VersionHeader, r io.Reader) (*fkgrpc.File, error)
	Download(ctx context.Context, fileID string, w io.Writer) (*fkgrpc.File, error)
	GetFile(ctx context.Context, fileID string) (*fkgrpc.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	RevertFile(ctx context.Context, fileID string, version int) (*fkgrpc.File, error)
	UpdateFileMetadata(ctx context.Context, req *fkgrpc.UpdateMetadataRequest) (*fkgrpc.File, error)
	ShareFile(ctx context.Context, fileID, granteeID, permission string) (*fkgrpc.File, error)
	ListFiles(ctx context.Context, req *fkgrpc.ListFilesRequest) ([]*fkgrpc.File, error)
	Search(ctx context.Context, req *fkgrpc.SearchRequest) (*fkgrpc.SearchResponse, error)
	Usage(ctx context.Context) (*fkgrpc.UsageResponse, error)
	DownloadURL(ctx context.Context, fileID string) (*fkgrpc.DownloadURLResponse, error)
	AccessHistory(ctx context.Context, fileID string, limit int) ([]fkgrpc.AccessEvent, error)
	CreateFolder(ctx context.Context, req *fkgrpc.CreateFolderRequest) (*fkgrpc.Folder, error)
	ListFolders(ctx context.Context, parentID *string) ([]*fkgrpc.Folder, error)
	UpdateFolder(ctx context.Context, req *fkgrpc.UpdateFolderRequest) (*fkgrpc.Folder, error)
	ShareFolder(ctx context.Context, folderID, granteeID, permission string) (*fkgrpc.Folder, error)
	DeleteFolder(ctx context.Context, folderID string) error
	Close() error
}

// dialFunc opens a client that presents token on every call.
type dialFunc func(token string) (api, error)

type App struct {
	config *config.Config
	dial   dialFunc
	client api
	userID string
	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	mode Mode
}

func NewApp(c *config.Config) (*App, error) {
	dial := func(token string) (api, error) {
		return fkgrpc.NewClient(c.ServerEndpointAddr, token)
	}
	return newApp(c, dial, os.Stdin, os.Stdout)
}

func newApp(c *config.Config, dial dialFunc, in io.Reader, out io.Writer) (*App, error) {
	cl, err := dial("")
	if err != nil {
		return nil, err
	}
	return &App{config: c, dial: dial, client: cl, reader: bufio.NewReader(in), out: out}, nil
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer func() { a.conn().Close() }()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.userID != ""
}

// StartOnlineStatusWatcher pings the server every interval until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.conn().Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
