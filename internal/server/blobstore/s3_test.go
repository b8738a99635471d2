package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 emulates the object semantics S3Store relies on.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_Contract(t *testing.T) {
	runStoreContract(t, &S3Store{client: newFakeS3(), bucket: "b"})
}

func TestS3Store_PutTransportErrorIsIOFailure(t *testing.T) {
	f := newFakeS3()
	f.putErr = errors.New("connection refused")
	s := &S3Store{client: f, bucket: "b"}

	err := s.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, common.ErrIOFailure)
}

func TestS3Store_PresignGet(t *testing.T) {
	orig := presignGetObject
	t.Cleanup(func() { presignGetObject = orig })

	var gotKey string
	presignGetObject = func(_ *s3.PresignClient, _ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotKey = aws.ToString(in.Key)
		return &v4.PresignedHTTPRequest{URL: "https://example/" + gotKey}, nil
	}

	s := &S3Store{client: newFakeS3(), bucket: "b"}
	u, err := s.PresignGet(context.Background(), "users/u1/k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://example/users/u1/k", u)
	assert.Equal(t, "users/u1/k", gotKey)

	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("boom")
	}
	_, err = s.PresignGet(context.Background(), "k", time.Minute)
	require.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	s, err := NewFromConfig(ctx, &config.Config{BlobBackend: config.BlobBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewFromConfig(ctx, &config.Config{BlobBackend: config.BlobBackendFilesystem, FSBlobRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FilesystemStore{}, s)

	_, err = NewFromConfig(ctx, &config.Config{BlobBackend: config.BlobBackendFilesystem})
	require.Error(t, err)

	s, err = NewFromConfig(ctx, &config.Config{
		BlobBackend: config.BlobBackendS3, S3Region: "us-east-1", S3RootUser: "u", S3RootPassword: "p",
		S3Bucket: "b", S3BaseEndpoint: "http://127.0.0.1:9000/",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, s)

	_, err = NewFromConfig(ctx, &config.Config{BlobBackend: "tape"})
	require.Error(t, err)
}
