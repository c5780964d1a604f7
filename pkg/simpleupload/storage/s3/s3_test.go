package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

type fakeS3 struct {
	mu       sync.Mutex
	requests []*http.Request
	aborted  map[string]bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Clone(context.Background()))

	q := r.URL.Query()
	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult><Bucket>uploads</Bucket><Key>videos/big.mp4</Key><UploadId>upload-123</UploadId></InitiateMultipartUploadResult>`))
	case r.Method == http.MethodDelete && q.Get("uploadId") == "upload-123" && !f.aborted["upload-123"]:
		f.aborted["upload-123"] = true
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchUpload</Code><Message>The specified upload does not exist.</Message><RequestId>r1</RequestId></Error>`))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newBackend(t *testing.T) (*Backend, *fakeS3) {
	t.Helper()
	fake := &fakeS3{aborted: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := storage.CustomClient(storage.CustomParams{
		Hostname:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		PathStyle:       true,
	})
	require.NoError(t, err)

	b, err := New(context.Background(), client)
	require.NoError(t, err)
	return b, fake
}

func TestBackend_CreateMultipartUpload(t *testing.T) {
	b, fake := newBackend(t)

	id, err := b.CreateMultipartUpload(context.Background(), storage.MultipartParams{
		Bucket:       "uploads",
		Key:          "videos/big.mp4",
		ContentType:  "video/mp4",
		CacheControl: "max-age=60",
		ACL:          "private",
		StorageClass: "STANDARD_IA",
		Metadata:     map[string]string{"owner": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "upload-123", id)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "/uploads/videos/big.mp4", req.URL.Path)
	assert.Equal(t, "video/mp4", req.Header.Get("Content-Type"))
	assert.Equal(t, "max-age=60", req.Header.Get("Cache-Control"))
	assert.Equal(t, "private", req.Header.Get("X-Amz-Acl"))
	assert.Equal(t, "STANDARD_IA", req.Header.Get("X-Amz-Storage-Class"))
	assert.Equal(t, "alice", req.Header.Get("X-Amz-Meta-Owner"))
}

func TestBackend_AbortMultipartUpload(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.AbortMultipartUpload(ctx, "uploads", "videos/big.mp4", "upload-123"))

	// a second abort finds nothing to discard
	err := b.AbortMultipartUpload(ctx, "uploads", "videos/big.mp4", "upload-123")
	assert.ErrorIs(t, err, storage.ErrNoSuchUpload)
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}
