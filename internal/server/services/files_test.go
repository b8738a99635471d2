package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

func (e *testEnv) newVersion(t *testing.T, fileID, requester, body string) *models.File {
	t.Helper()
	expectLockedTx(e.mock)
	f, err := e.files.UploadNewVersion(context.Background(), fileID, requester, strings.NewReader(body), UploadMeta{})
	require.NoError(t, err)
	return f
}

func TestUpload_ReportScenario(t *testing.T) {
	e := newTestEnv(t)
	docs := e.mkdir(t, "alice", "docs")
	archive := e.mkdir(t, "alice", "archive")
	body := strings.Repeat("x", 2048)

	first, reused := e.upload(t, "alice", &docs.ID, "report.pdf", body)
	assert.False(t, reused)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, int64(2048), first.Size)
	assert.Equal(t, models.AccessPrivate, first.AccessLevel)
	assert.Equal(t, "report.pdf", first.Name)
	assert.Equal(t, int64(2048), e.usedBytes("alice"))

	again, reused := e.upload(t, "alice", &docs.ID, "report.pdf", body)
	assert.True(t, reused)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(2048), e.usedBytes("alice"))
	assert.Len(t, e.blobs.Paths(), 1)

	copied, reused := e.upload(t, "alice", &archive.ID, "report.pdf", body)
	assert.False(t, reused)
	assert.NotEqual(t, first.ID, copied.ID)
	assert.Equal(t, 1, copied.Version)
	assert.Equal(t, first.Checksum, copied.Checksum)
	assert.Equal(t, int64(4096), e.usedBytes("alice"))
	assert.Len(t, e.blobs.Paths(), 2)
	assert.Equal(t, 2, e.repos.u.credits)
}

func TestUpload_NoTargetFolderReusesOldest(t *testing.T) {
	e := newTestEnv(t)
	docs := e.mkdir(t, "alice", "docs")

	first, _ := e.upload(t, "alice", &docs.ID, "a.txt", "same bytes")
	root, reused := e.upload(t, "alice", nil, "b.txt", "same bytes")

	assert.True(t, reused)
	assert.Equal(t, first.ID, root.ID)
	assert.Equal(t, int64(len("same bytes")), e.usedBytes("alice"))
}

func TestUpload_DedupIsScopedToOwner(t *testing.T) {
	e := newTestEnv(t)

	a, _ := e.upload(t, "alice", nil, "a.txt", "shared content")
	b, reused := e.upload(t, "bob", nil, "a.txt", "shared content")

	assert.False(t, reused)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "bob", b.OwnerID)
	assert.Equal(t, int64(14), e.usedBytes("alice"))
	assert.Equal(t, int64(14), e.usedBytes("bob"))
}

func TestUpload_RecordFailureRemovesBlob(t *testing.T) {
	e := newTestEnv(t)
	e.repos.f.createErr = errors.New("insert failed")

	expectRollback(e.mock, true)
	_, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID:      "alice",
		OriginalName: "a.txt",
		Body:         strings.NewReader("payload"),
	})

	require.Error(t, err)
	assert.Empty(t, e.blobs.Paths())
	assert.Zero(t, e.usedBytes("alice"))
}

func TestUpload_FolderChecks(t *testing.T) {
	e := newTestEnv(t)
	bobs := e.mkdir(t, "bob", "private")

	expectRollback(e.mock, false)
	_, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID: "alice", FolderID: &bobs.ID, OriginalName: "a.txt", Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	missing := "00000000-0000-4000-8000-000000000999"
	expectRollback(e.mock, false)
	_, _, err = e.files.Upload(context.Background(), UploadRequest{
		OwnerID: "alice", FolderID: &missing, OriginalName: "a.txt", Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, e.blobs.Paths())
}

func TestUpload_Validation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"no owner", UploadRequest{OriginalName: "a", Body: strings.NewReader("x")}},
		{"no name", UploadRequest{OwnerID: "alice", Body: strings.NewReader("x")}},
		{"bad level", UploadRequest{OwnerID: "alice", OriginalName: "a", AccessLevel: "secret", Body: strings.NewReader("x")}},
		{"blank tag", UploadRequest{OwnerID: "alice", OriginalName: "a", Tags: []string{""}, Body: strings.NewReader("x")}},
		{"blank metadata key", UploadRequest{OwnerID: "alice", OriginalName: "a", Metadata: map[string]string{" ": "v"}, Body: strings.NewReader("x")}},
		{"no body", UploadRequest{OwnerID: "alice", OriginalName: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.files.Upload(context.Background(), tt.req)
			assert.ErrorIs(t, err, common.ErrorIncorrectMetadata)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID:      "alice",
		OriginalName: "big.bin",
		Body:         strings.NewReader(strings.Repeat("x", 1<<20+1)),
	})

	assert.ErrorIs(t, err, common.ErrorTooLarge)
	assert.Empty(t, e.blobs.Paths())
}

func TestUploadNewVersion_KeepsChainInvariant(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "notes.txt", "one")

	v2 := e.newVersion(t, f.ID, "alice", "two!")
	v3 := e.newVersion(t, f.ID, "alice", "three")

	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 3, v3.Version)
	assert.Len(t, v3.PreviousVersions, 2)
	assert.Equal(t, v3.Version, len(v3.PreviousVersions)+1)
	assert.Equal(t, []int{1, 2}, []int{v3.PreviousVersions[0].Version, v3.PreviousVersions[1].Version})
	assert.Equal(t, f.StoragePath, v3.PreviousVersions[0].StoragePath)
	assert.Equal(t, int64(3+4+5), e.usedBytes("alice"))
	assert.Len(t, e.blobs.Paths(), 3)
}

func TestUploadNewVersion_WriteGranteeCreditsOwner(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "plan.txt", "draft")

	expectTx(e.mock)
	_, err := e.files.ShareFile(context.Background(), f.ID, "alice", "bob", models.PermissionWrite)
	require.NoError(t, err)

	v2 := e.newVersion(t, f.ID, "bob", "final")
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, "alice", v2.OwnerID)
	assert.Equal(t, int64(10), e.usedBytes("alice"))
	assert.Zero(t, e.usedBytes("bob"))

	require.NotEmpty(t, e.repos.al.events)
	last := e.repos.al.events[len(e.repos.al.events)-1]
	assert.Equal(t, models.AccessEdit, last.AccessType)
	assert.Equal(t, "bob", last.UserID)
}

func TestUploadNewVersion_ReaderDenied(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "plan.txt", "draft")

	expectTx(e.mock)
	_, err := e.files.ShareFile(context.Background(), f.ID, "alice", "bob", models.PermissionRead)
	require.NoError(t, err)

	expectRollback(e.mock, false)
	_, err = e.files.UploadNewVersion(context.Background(), f.ID, "bob", strings.NewReader("hijack"), UploadMeta{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Len(t, e.blobs.Paths(), 1)
}

func TestUploadNewVersion_UpdateFailureRemovesBlob(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "a.txt", "v1")
	e.repos.f.updateErr = errors.New("update failed")

	expectRollback(e.mock, true)
	_, err := e.files.UploadNewVersion(context.Background(), f.ID, "alice", strings.NewReader("v2"), UploadMeta{})

	require.Error(t, err)
	assert.Equal(t, []string{f.StoragePath}, e.blobs.Paths())
	assert.Equal(t, int64(2), e.usedBytes("alice"))
}

func TestRevert_V3ToV1Scenario(t *testing.T) {
	e := newTestEnv(t)
	v1, _ := e.upload(t, "alice", nil, "doc.txt", "first")
	v2 := e.newVersion(t, v1.ID, "alice", "second")
	v3 := e.newVersion(t, v1.ID, "alice", "third!!")
	used := e.usedBytes("alice")

	expectTx(e.mock)
	got, err := e.files.Revert(context.Background(), v1.ID, "alice", 1)
	require.NoError(t, err)

	assert.Equal(t, 4, got.Version)
	assert.Equal(t, v1.StoragePath, got.StoragePath)
	assert.Equal(t, v1.Size, got.Size)
	assert.Equal(t, v1.Checksum, got.Checksum)
	require.Len(t, got.PreviousVersions, 2)
	assert.Equal(t, 2, got.PreviousVersions[0].Version)
	assert.Equal(t, v2.StoragePath, got.PreviousVersions[0].StoragePath)
	assert.Equal(t, 3, got.PreviousVersions[1].Version)
	assert.Equal(t, v3.StoragePath, got.PreviousVersions[1].StoragePath)
	assert.Equal(t, used, e.usedBytes("alice"))

	stored, err := e.repos.f.Get(context.Background(), v1.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestRevert_TwiceRestoresHead(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "short")
	v2 := e.newVersion(t, f.ID, "alice", "much longer")

	expectTx(e.mock)
	back, err := e.files.Revert(context.Background(), f.ID, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, f.StoragePath, back.StoragePath)
	assert.Equal(t, 3, back.Version)
	require.Len(t, back.PreviousVersions, 1)
	assert.Equal(t, 2, back.PreviousVersions[0].Version)
	assert.Equal(t, v2.StoragePath, back.PreviousVersions[0].StoragePath)

	expectTx(e.mock)
	forth, err := e.files.Revert(context.Background(), f.ID, "alice", 2)
	require.NoError(t, err)

	assert.Equal(t, v2.StoragePath, forth.StoragePath)
	assert.Equal(t, v2.Size, forth.Size)
	assert.Equal(t, 4, forth.Version)
	require.Len(t, forth.PreviousVersions, 1)
	assert.Equal(t, 3, forth.PreviousVersions[0].Version)
	assert.Equal(t, f.StoragePath, forth.PreviousVersions[0].StoragePath)
}

func TestRevert_ThenNewVersion(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "one")
	e.newVersion(t, f.ID, "alice", "two")

	expectTx(e.mock)
	_, err := e.files.Revert(context.Background(), f.ID, "alice", 1)
	require.NoError(t, err)

	v4 := e.newVersion(t, f.ID, "alice", "four")
	assert.Equal(t, 4, v4.Version)
	require.Len(t, v4.PreviousVersions, 2)
	assert.Equal(t, 2, v4.PreviousVersions[0].Version)
	assert.Equal(t, 3, v4.PreviousVersions[1].Version)
	assert.Equal(t, f.StoragePath, v4.PreviousVersions[1].StoragePath)
}

func TestRevert_Errors(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "one")
	v2 := e.newVersion(t, f.ID, "alice", "two")

	expectRollback(e.mock, false)
	_, err := e.files.Revert(context.Background(), f.ID, "alice", 7)
	assert.ErrorIs(t, err, common.ErrVersionNotFound)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	expectRollback(e.mock, false)
	_, err = e.files.Revert(context.Background(), f.ID, "mallory", 1)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.blobs.Delete(context.Background(), f.StoragePath)
	require.NoError(t, err)

	expectRollback(e.mock, false)
	_, err = e.files.Revert(context.Background(), f.ID, "alice", 1)
	assert.ErrorIs(t, err, common.ErrBlobMissing)

	stored, err := e.repos.f.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.StoragePath, stored.StoragePath)
	assert.Equal(t, 2, stored.Version)
}

func TestDelete_RemovesEveryVersionAndDebitsHead(t *testing.T) {
	e := newTestEnv(t)
	keep, _ := e.upload(t, "alice", nil, "keep.txt", "keep me")
	f, _ := e.upload(t, "alice", nil, "doc.txt", "aaaa")
	e.newVersion(t, f.ID, "alice", "bbbbbbbb")
	head := e.newVersion(t, f.ID, "alice", "cc")
	before := e.usedBytes("alice")

	expectTx(e.mock)
	require.NoError(t, e.files.Delete(context.Background(), f.ID, "alice"))

	assert.Equal(t, []string{keep.StoragePath}, e.blobs.Paths())
	assert.Equal(t, before-head.Size, e.usedBytes("alice"))
	assert.Equal(t, 1, e.repos.u.debits)

	_, err := e.repos.f.Get(context.Background(), f.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_MissingBlobIsTolerated(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "aaaa")
	_, err := e.blobs.Delete(context.Background(), f.StoragePath)
	require.NoError(t, err)

	expectTx(e.mock)
	assert.NoError(t, e.files.Delete(context.Background(), f.ID, "alice"))
	assert.Zero(t, e.usedBytes("alice"))
}

func TestDelete_NotOwner(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "aaaa")

	expectRollback(e.mock, false)
	err := e.files.Delete(context.Background(), f.ID, "bob")

	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Len(t, e.blobs.Paths(), 1)
	assert.Equal(t, int64(4), e.usedBytes("alice"))
}

func TestDelete_QuotaInconsistent(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "aaaa")
	e.repos.u.used["alice"] = 1

	expectRollback(e.mock, false)
	err := e.files.Delete(context.Background(), f.ID, "alice")

	assert.ErrorIs(t, err, common.ErrQuotaInconsistent)
	assert.Len(t, e.blobs.Paths(), 1)
}

func TestShareFile(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "doc.txt", "aaaa")

	expectTx(e.mock)
	shared, err := e.files.ShareFile(context.Background(), f.ID, "alice", "bob", models.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, models.AccessShared, shared.AccessLevel)
	assert.Equal(t, []models.ShareGrant{{UserID: "bob", Permission: models.PermissionRead}}, shared.SharedWith)

	expectRollback(e.mock, false)
	_, err = e.files.ShareFile(context.Background(), f.ID, "alice", "bob", models.PermissionWrite)
	assert.ErrorIs(t, err, common.ErrAlreadyShared)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	expectRollback(e.mock, false)
	_, err = e.files.ShareFile(context.Background(), f.ID, "bob", "carol", models.PermissionRead)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	expectRollback(e.mock, false)
	_, err = e.files.ShareFile(context.Background(), f.ID, "alice", "alice", models.PermissionRead)
	assert.ErrorIs(t, err, common.ErrorIncorrectMetadata)

	_, err = e.files.ShareFile(context.Background(), f.ID, "alice", "carol", "admin")
	assert.ErrorIs(t, err, common.ErrorIncorrectMetadata)

	got, err := e.files.Get(context.Background(), f.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, got.SharedWith, 1)

	_, err = e.files.Get(context.Background(), f.ID, "carol")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestGet_InheritsFolderShare(t *testing.T) {
	e := newTestEnv(t)
	docs := e.mkdir(t, "alice", "docs")
	f, _ := e.upload(t, "alice", &docs.ID, "doc.txt", "inside")

	_, err := e.files.Get(context.Background(), f.ID, "bob")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	expectTx(e.mock)
	_, err = e.folders.ShareFolder(context.Background(), docs.ID, "alice", "bob", models.PermissionRead)
	require.NoError(t, err)

	got, rc, err := e.files.Download(context.Background(), f.ID, "bob")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "inside", string(data))
	assert.Equal(t, f.ID, got.ID)

	_, err = e.files.Get(context.Background(), f.ID, "carol")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	expectRollback(e.mock, false)
	_, err = e.files.UpdateMetadata(context.Background(), f.ID, "bob", MetadataPatch{Tags: []string{"x"}})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestDownload_RecordsAccess(t *testing.T) {
	e := newTestEnv(t)
	expectLockedTx(e.mock)
	f, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID:      "alice",
		OriginalName: "pub.txt",
		AccessLevel:  models.AccessPublic,
		Body:         strings.NewReader("hello"),
	})
	require.NoError(t, err)

	_, rc, err := e.files.Download(context.Background(), f.ID, "bob")
	require.NoError(t, err)
	rc.Close()

	history, err := e.files.AccessHistory(context.Background(), f.ID, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "bob", history[0].UserID)
	assert.Equal(t, models.AccessDownload, history[0].AccessType)

	_, err = e.files.AccessHistory(context.Background(), f.ID, "bob", 10)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestDownload_TrackerFailureDoesNotFail(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "a.txt", "hello")
	e.repos.al.recordErr = errors.New("log down")

	_, rc, err := e.files.Download(context.Background(), f.ID, "alice")
	require.NoError(t, err)
	rc.Close()
}

func TestDownload_MissingHeadBlob(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "a.txt", "hello")
	_, err := e.blobs.Delete(context.Background(), f.StoragePath)
	require.NoError(t, err)

	_, _, err = e.files.Download(context.Background(), f.ID, "alice")
	assert.ErrorIs(t, err, common.ErrBlobMissing)
	assert.Empty(t, e.repos.al.events)
}

func TestDownloadURL_NotSupportedByMemoryStore(t *testing.T) {
	e := newTestEnv(t)
	f, _ := e.upload(t, "alice", nil, "a.txt", "hello")

	_, err := e.files.DownloadURL(context.Background(), f.ID, "alice")
	assert.ErrorIs(t, err, common.ErrNotSupported)
}

func TestUpdateMetadata_MergesAndGuardsLevel(t *testing.T) {
	e := newTestEnv(t)
	expectLockedTx(e.mock)
	f, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID:      "alice",
		OriginalName: "a.txt",
		Metadata:     map[string]string{"author": "alice", "project": "x"},
		Tags:         []string{"old"},
		Body:         strings.NewReader("hello"),
	})
	require.NoError(t, err)

	name := "renamed.txt"
	expectTx(e.mock)
	got, err := e.files.UpdateMetadata(context.Background(), f.ID, "alice", MetadataPatch{
		Name:     &name,
		Tags:     []string{"new"},
		Metadata: map[string]string{"project": "", "description": "quarterly"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", got.Name)
	assert.Equal(t, []string{"new"}, got.Tags)
	assert.Equal(t, map[string]string{"author": "alice", "description": "quarterly"}, got.Metadata)
	assert.True(t, got.UpdatedAt.After(f.UpdatedAt))

	expectTx(e.mock)
	_, err = e.files.ShareFile(context.Background(), f.ID, "alice", "bob", models.PermissionWrite)
	require.NoError(t, err)

	public := models.AccessPublic
	expectRollback(e.mock, false)
	_, err = e.files.UpdateMetadata(context.Background(), f.ID, "bob", MetadataPatch{AccessLevel: &public})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	expectTx(e.mock)
	got, err = e.files.UpdateMetadata(context.Background(), f.ID, "bob", MetadataPatch{Tags: []string{"edited"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"edited"}, got.Tags)

	bad := models.AccessLevel("secret")
	_, err = e.files.UpdateMetadata(context.Background(), f.ID, "alice", MetadataPatch{AccessLevel: &bad})
	assert.ErrorIs(t, err, common.ErrorIncorrectMetadata)
}

func TestList_Filters(t *testing.T) {
	e := newTestEnv(t)
	docs := e.mkdir(t, "alice", "docs")

	expectLockedTx(e.mock)
	tagged, _, err := e.files.Upload(context.Background(), UploadRequest{
		OwnerID: "alice", FolderID: &docs.ID, OriginalName: "Budget.xlsx", Tags: []string{"finance"},
		Body: strings.NewReader("numbers"),
	})
	require.NoError(t, err)
	e.upload(t, "alice", nil, "photo.png", "pixels")
	e.upload(t, "bob", nil, "budget.xlsx", "other")

	all, err := e.files.List(context.Background(), "alice", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Contains(t, []string{all[0].ID, all[1].ID}, tagged.ID, "no folder filter spans every folder")

	inDocs, err := e.files.List(context.Background(), "alice", ListFilter{FolderID: &docs.ID})
	require.NoError(t, err)
	require.Len(t, inDocs, 1)
	assert.Equal(t, tagged.ID, inDocs[0].ID)

	byTag, err := e.files.List(context.Background(), "alice", ListFilter{Tag: "finance"})
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	byName, err := e.files.List(context.Background(), "alice", ListFilter{Search: "budget"})
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}

func TestUsage(t *testing.T) {
	e := newTestEnv(t)
	e.upload(t, "alice", nil, "a.txt", "12345")

	u, err := e.files.Usage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.UsedBytes)

	u, err = e.files.Usage(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, u.UsedBytes)
}
