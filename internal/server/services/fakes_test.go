package services

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/hasher"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/quota"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/accesslog"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/folders"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/usage"
)

// -------- test fakes --------

func cloneFile(f *models.File) *models.File {
	c := *f
	c.PreviousVersions = slices.Clone(f.PreviousVersions)
	c.SharedWith = slices.Clone(f.SharedWith)
	c.Tags = slices.Clone(f.Tags)
	c.Metadata = maps.Clone(f.Metadata)
	return &c
}

func cloneFolder(f *models.Folder) *models.Folder {
	c := *f
	c.SharedWith = slices.Clone(f.SharedWith)
	return &c
}

type fakeFilesRepo struct {
	files.Repository
	rows  map[string]*models.File
	order []string

	createErr error
	updateErr error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{rows: map[string]*models.File{}}
}

func (r *fakeFilesRepo) Create(_ context.Context, f *models.File) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.rows[f.ID]; ok {
		return common.ErrAlreadyExists
	}
	r.rows[f.ID] = cloneFile(f)
	r.order = append(r.order, f.ID)
	return nil
}

func (r *fakeFilesRepo) Get(_ context.Context, id string) (*models.File, error) {
	f, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneFile(f), nil
}

func (r *fakeFilesRepo) GetForUpdate(ctx context.Context, id string) (*models.File, error) {
	return r.Get(ctx, id)
}

func (r *fakeFilesRepo) Update(_ context.Context, f *models.File) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rows[f.ID]; !ok {
		return common.ErrorNotFound
	}
	r.rows[f.ID] = cloneFile(f)
	return nil
}

func (r *fakeFilesRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

func (r *fakeFilesRepo) FindByChecksum(_ context.Context, ownerID, checksum string) ([]*models.File, error) {
	var out []*models.File
	for _, id := range r.order {
		f := r.rows[id]
		if f.OwnerID == ownerID && f.Checksum == checksum {
			out = append(out, cloneFile(f))
		}
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (r *fakeFilesRepo) List(_ context.Context, ownerID string, filter files.Filter) ([]*models.File, error) {
	var out []*models.File
	for _, id := range r.order {
		f := r.rows[id]
		if f.OwnerID != ownerID {
			continue
		}
		if filter.FolderID != nil && (f.FolderID == nil || *f.FolderID != *filter.FolderID) {
			continue
		}
		if filter.Tag != "" && !slices.Contains(f.Tags, filter.Tag) {
			continue
		}
		if filter.Search != "" && !containsFold(f.OriginalName, filter.Search) && !containsFold(f.Metadata["description"], filter.Search) {
			continue
		}
		out = append(out, cloneFile(f))
	}
	return out, nil
}

func (r *fakeFilesRepo) Search(_ context.Context, ownerID string, q files.Query) ([]*models.File, error) {
	var out []*models.File
	for _, id := range r.order {
		f := r.rows[id]
		if f.OwnerID != ownerID {
			continue
		}
		hit := containsFold(f.OriginalName, q.Text) ||
			slices.ContainsFunc(f.Tags, func(t string) bool { return containsFold(t, q.Text) })
		for k, v := range q.Metadata {
			if !containsFold(f.Metadata[k], v) {
				hit = false
			}
		}
		if hit {
			out = append(out, cloneFile(f))
		}
	}
	return out, nil
}

func (r *fakeFilesRepo) CountInFolder(_ context.Context, folderID string) (int, error) {
	n := 0
	for _, f := range r.rows {
		if f.FolderID != nil && *f.FolderID == folderID {
			n++
		}
	}
	return n, nil
}

type fakeFoldersRepo struct {
	folders.Repository
	rows  map[string]*models.Folder
	order []string
}

func newFakeFoldersRepo() *fakeFoldersRepo {
	return &fakeFoldersRepo{rows: map[string]*models.Folder{}}
}

func (r *fakeFoldersRepo) Create(_ context.Context, f *models.Folder) error {
	r.rows[f.ID] = cloneFolder(f)
	r.order = append(r.order, f.ID)
	return nil
}

func (r *fakeFoldersRepo) Get(_ context.Context, id string) (*models.Folder, error) {
	f, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneFolder(f), nil
}

func (r *fakeFoldersRepo) GetForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	return r.Get(ctx, id)
}

func (r *fakeFoldersRepo) Update(_ context.Context, f *models.Folder) error {
	if _, ok := r.rows[f.ID]; !ok {
		return common.ErrorNotFound
	}
	r.rows[f.ID] = cloneFolder(f)
	return nil
}

func (r *fakeFoldersRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

func (r *fakeFoldersRepo) List(_ context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, id := range r.order {
		f := r.rows[id]
		if f.OwnerID != ownerID {
			continue
		}
		if (parentID == nil) != (f.ParentID == nil) {
			continue
		}
		if parentID != nil && *parentID != *f.ParentID {
			continue
		}
		out = append(out, cloneFolder(f))
	}
	return out, nil
}

func (r *fakeFoldersRepo) CountChildren(_ context.Context, id string) (int, error) {
	n := 0
	for _, f := range r.rows {
		if f.ParentID != nil && *f.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *fakeFoldersRepo) RewritePaths(_ context.Context, ownerID, oldPrefix, newPrefix string) (int64, error) {
	var n int64
	for _, f := range r.rows {
		if f.OwnerID == ownerID && f.Path != oldPrefix && strings.HasPrefix(f.Path, oldPrefix) {
			f.Path = newPrefix + strings.TrimPrefix(f.Path, oldPrefix)
			n++
		}
	}
	return n, nil
}

func (r *fakeFoldersRepo) Search(_ context.Context, ownerID, text string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, id := range r.order {
		f := r.rows[id]
		if f.OwnerID == ownerID && containsFold(f.Name, text) {
			out = append(out, cloneFolder(f))
		}
	}
	return out, nil
}

type fakeUsageRepo struct {
	usage.Repository
	used map[string]int64

	credits int
	debits  int
}

func (r *fakeUsageRepo) Credit(_ context.Context, userID string, bytes int64) error {
	r.used[userID] += bytes
	r.credits++
	return nil
}

func (r *fakeUsageRepo) Debit(_ context.Context, userID string, bytes int64) error {
	if r.used[userID] < bytes {
		return common.ErrQuotaInconsistent
	}
	r.used[userID] -= bytes
	r.debits++
	return nil
}

func (r *fakeUsageRepo) Get(_ context.Context, userID string) (*models.Usage, error) {
	return &models.Usage{UserID: userID, UsedBytes: r.used[userID]}, nil
}

type fakeAccessLogRepo struct {
	accesslog.Repository
	events    []*models.FileAccess
	recordErr error
}

func (r *fakeAccessLogRepo) Record(_ context.Context, ev *models.FileAccess) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeAccessLogRepo) ListByFile(_ context.Context, fileID string, limit int) ([]*models.FileAccess, error) {
	var out []*models.FileAccess
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].FileID == fileID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	f  *fakeFilesRepo
	d  *fakeFoldersRepo
	u  *fakeUsageRepo
	al *fakeAccessLogRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		f:  newFakeFilesRepo(),
		d:  newFakeFoldersRepo(),
		u:  &fakeUsageRepo{used: map[string]int64{}},
		al: &fakeAccessLogRepo{},
	}
}

func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository         { return m.f }
func (m *fakeRepoManager) Folders(dbx.DBTX) folders.Repository     { return m.d }
func (m *fakeRepoManager) Usage(dbx.DBTX) usage.Repository         { return m.u }
func (m *fakeRepoManager) AccessLog(dbx.DBTX) accesslog.Repository { return m.al }

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

var advisoryLockSQL = regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)

func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectLockedTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(advisoryLockSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

func expectRollback(mock sqlmock.Sqlmock, locked bool) {
	mock.ExpectBegin()
	if locked {
		mock.ExpectExec(advisoryLockSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectRollback()
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// idSequence returns deterministic UUIDs; tag keeps generators apart.
func idSequence(tag int) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8%03d-%012d", tag, n)
	}
}

// stepClock returns a clock that moves one second per call.
func stepClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type testEnv struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	repos   *fakeRepoManager
	blobs   *blobstore.MemoryStore
	files   *FileService
	folders *FolderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock := newSQLMockDB(t)
	repos := newFakeRepoManager()
	blobs := blobstore.NewMemoryStore()

	h, err := hasher.New(t.TempDir(), hasher.SHA256, 1<<20)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()

	tracker := NewAccessTracker(db, repos, logging.Nop{})
	tracker.newID = sequence("event")

	fs := NewFileService(db, repos, blobs, h, quota.NewLedger(repos, logging.Nop{}), tracker, nil, cfg, logging.Nop{})
	fs.newID = idSequence(1)
	fs.now = stepClock()

	ds := NewFolderService(db, repos, logging.Nop{})
	ds.newID = idSequence(2)
	ds.now = stepClock()

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return &testEnv{db: db, mock: mock, repos: repos, blobs: blobs, files: fs, folders: ds}
}

// mkdir creates a root-level folder for owner.
func (e *testEnv) mkdir(t *testing.T, owner, name string) *models.Folder {
	t.Helper()
	expectTx(e.mock)
	f, err := e.folders.CreateFolder(context.Background(), owner, name, nil, "")
	require.NoError(t, err)
	return f
}

// upload stores body for owner in folderID and expects the transaction to
// commit.
func (e *testEnv) upload(t *testing.T, owner string, folderID *string, name, body string) (*models.File, bool) {
	t.Helper()
	expectLockedTx(e.mock)
	f, reused, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID:      owner,
		FolderID:     folderID,
		OriginalName: name,
		MediaType:    "application/pdf",
		Body:         strings.NewReader(body),
	})
	require.NoError(t, err)
	return f, reused
}

func (e *testEnv) usedBytes(owner string) int64 {
	return e.repos.u.used[owner]
}
