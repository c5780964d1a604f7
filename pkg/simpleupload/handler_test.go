package simpleupload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testClient(t *testing.T) *storage.Client {
	t.Helper()
	c, err := storage.CustomClient(storage.CustomParams{
		Hostname:        "s3.us-east-1.amazonaws.com",
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return c
}

func testSigner(t *testing.T, c *storage.Client) *signer.Signer {
	t.Helper()
	s, err := c.Signer(signer.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return s
}

type fakeMultipart struct {
	mu      sync.Mutex
	created []storage.MultipartParams
	aborted []string
	failKey string
	n       int
}

func (f *fakeMultipart) CreateMultipartUpload(ctx context.Context, p storage.MultipartParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Key == f.failKey {
		return "", errors.New("storage unavailable")
	}
	f.n++
	f.created = append(f.created, p)
	return fmt.Sprintf("upload-%d", f.n), nil
}

func (f *fakeMultipart) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func mustRoute(t *testing.T, name string, opts ...simpleupload.RouteOption) *simpleupload.Route {
	t.Helper()
	r, err := simpleupload.NewRoute(name, opts...)
	require.NoError(t, err)
	return r
}

func newHandler(t *testing.T, routes []*simpleupload.Route, opts ...simpleupload.Option) *simpleupload.Handler {
	t.Helper()
	opts = append([]simpleupload.Option{simpleupload.WithClock(func() time.Time { return testNow })}, opts...)
	h, err := simpleupload.New(testClient(t), "uploads", routes, opts...)
	require.NoError(t, err)
	return h
}

func send(t *testing.T, h *simpleupload.Handler, body any) *simpleupload.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return h.Handle(context.Background(), &simpleupload.Request{Method: http.MethodPost, Body: bytes.NewReader(raw)})
}

func decodeOK(t *testing.T, res *simpleupload.Response) simpleupload.UploadResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	var out simpleupload.UploadResponse
	require.NoError(t, json.Unmarshal(res.Body, &out))
	return out
}

func decodeErr(t *testing.T, res *simpleupload.Response) simpleupload.ErrorDetail {
	t.Helper()
	var out simpleupload.ErrorBody
	require.NoError(t, json.Unmarshal(res.Body, &out), string(res.Body))
	return out.Error
}

type file = simpleupload.FileDescriptor

func TestHandle_SinglePut(t *testing.T) {
	client := testClient(t)
	h := newHandler(t, []*simpleupload.Route{
		mustRoute(t, "img", simpleupload.WithFileTypes("image/*"), simpleupload.WithMaxFileSize(5_242_880)),
	})

	res := send(t, h, simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a.jpg", Size: 500000, Type: "image/jpeg"}}})
	out := decodeOK(t, res)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	require.Len(t, out.Files, 1)
	assert.Nil(t, out.Multipart)
	assert.JSONEq(t, `{}`, string(out.Metadata))

	signed := out.Files[0]
	assert.Nil(t, signed.PostForm)
	assert.True(t, strings.HasSuffix(signed.File.ObjectInfo.Key, "-a.jpg"), signed.File.ObjectInfo.Key)
	assert.Equal(t, "a.jpg", signed.File.Name)
	assert.Equal(t, int64(500000), signed.File.Size)
	assert.NotNil(t, signed.File.ObjectInfo.Metadata)

	u, err := url.Parse(signed.SignedURL)
	require.NoError(t, err)
	assert.Equal(t, "uploads.s3.us-east-1.amazonaws.com", u.Host)
	assert.Equal(t, "120", u.Query().Get("X-Amz-Expires"))
	assert.Equal(t, "content-length;content-type;host", u.Query().Get("X-Amz-SignedHeaders"))

	header := simpleupload.ObjectHeaders("image/jpeg", signed.File.ObjectInfo)
	header.Set("Content-Length", "500000")
	assert.NoError(t, testSigner(t, client).Verify(http.MethodPut, signed.SignedURL, header))

	// a different content type breaks the signature
	header.Set("Content-Type", "text/html")
	assert.ErrorIs(t, testSigner(t, client).Verify(http.MethodPut, signed.SignedURL, header), signer.ErrInvalidSignature)
}

func TestHandle_PolicyViolations(t *testing.T) {
	h := newHandler(t, []*simpleupload.Route{
		mustRoute(t, "img", simpleupload.WithFileTypes("image/*")),
		mustRoute(t, "gallery", simpleupload.WithFileTypes("image/png", "image/jpeg"), simpleupload.WithMultipleFiles(2)),
		mustRoute(t, "huge", simpleupload.WithMaxFileSize(10<<30)),
		mustRoute(t, "any", simpleupload.WithMultipleFiles(0)),
	}, simpleupload.WithMultipartCreator(&fakeMultipart{}))

	tests := []struct {
		name    string
		req     simpleupload.UploadRequest
		status  int
		errType simpleupload.ErrorType
		message string
	}{
		{
			name:    "too large",
			req:     simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a.jpg", Size: 10_485_760, Type: "image/jpeg"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorFileTooLarge,
			message: "One or more files are too large.",
		},
		{
			name:    "single file route gets two files",
			req:     simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a.jpg", Size: 1, Type: "image/jpeg"}, {Name: "b.exe", Size: 1 << 40, Type: "application/x-msdownload"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorTooManyFiles,
			message: "Multiple files are not allowed.",
		},
		{
			name:    "over max files",
			req:     simpleupload.UploadRequest{Route: "gallery", Files: []file{{Name: "a.png", Size: 1, Type: "image/png"}, {Name: "b.png", Size: 1, Type: "image/png"}, {Name: "c.png", Size: 1, Type: "image/png"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorTooManyFiles,
			message: "Too many files.",
		},
		{
			name:    "default max files for multi routes",
			req:     simpleupload.UploadRequest{Route: "any", Files: []file{{Name: "a", Size: 1, Type: "a/b"}, {Name: "b", Size: 1, Type: "a/b"}, {Name: "c", Size: 1, Type: "a/b"}, {Name: "d", Size: 1, Type: "a/b"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorTooManyFiles,
			message: "Too many files.",
		},
		{
			name:    "over the single request ceiling",
			req:     simpleupload.UploadRequest{Route: "huge", Files: []file{{Name: "disk.img", Size: simpleupload.MaxSinglePartSize + 1, Type: "application/octet-stream"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorFileTooLarge,
			message: "One or more files exceed the S3 limit of 5GB. Use multipart upload for larger files.",
		},
		{
			name:    "type not allowed",
			req:     simpleupload.UploadRequest{Route: "gallery", Files: []file{{Name: "a.png", Size: 1, Type: "image/png"}, {Name: "b.gif", Size: 1, Type: "image/gif"}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorInvalidFileType,
			message: "One or more files have an invalid file type.",
		},
		{
			name:    "unknown route",
			req:     simpleupload.UploadRequest{Route: "nope", Files: []file{{Name: "a", Size: 1, Type: "a/b"}}},
			status:  http.StatusNotFound,
			errType: simpleupload.ErrorInvalidRequest,
			message: "Upload route not found.",
		},
		{
			name:    "missing type",
			req:     simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a.jpg", Size: 1}}},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorInvalidRequest,
			message: "Invalid file upload request.",
		},
		{
			name:    "no files",
			req:     simpleupload.UploadRequest{Route: "img"},
			status:  http.StatusBadRequest,
			errType: simpleupload.ErrorInvalidRequest,
			message: "Invalid file upload request.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := send(t, h, tt.req)
			assert.Equal(t, tt.status, res.Status)
			detail := decodeErr(t, res)
			assert.Equal(t, tt.errType, detail.Type)
			assert.Equal(t, tt.message, detail.Message)
		})
	}
}

func TestHandle_MaxFileSizeBoundary(t *testing.T) {
	h := newHandler(t, []*simpleupload.Route{mustRoute(t, "r", simpleupload.WithMaxFileSize(1000))})

	res := send(t, h, simpleupload.UploadRequest{Route: "r", Files: []file{{Name: "a", Size: 1000, Type: "text/plain"}}})
	assert.Equal(t, http.StatusOK, res.Status)

	res = send(t, h, simpleupload.UploadRequest{Route: "r", Files: []file{{Name: "a", Size: 1001, Type: "text/plain"}}})
	assert.Equal(t, simpleupload.ErrorFileTooLarge, decodeErr(t, res).Type)
}

func TestHandle_Transport(t *testing.T) {
	h := newHandler(t, []*simpleupload.Route{mustRoute(t, "img")})

	res := h.Handle(context.Background(), &simpleupload.Request{Method: http.MethodGet})
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
	assert.Equal(t, http.MethodPost, res.Header.Get("Allow"))
	assert.Equal(t, simpleupload.ErrorInvalidRequest, decodeErr(t, res).Type)

	for _, body := range []string{`{`, `[]`, `{"route":"img","files":[{"name":"a","size":-1,"type":"a/b"}]}`, `{"route":"img","files":[{"name":"a","size":1.5,"type":"a/b"}]}`} {
		res := h.Handle(context.Background(), &simpleupload.Request{Method: http.MethodPost, Body: strings.NewReader(body)})
		assert.Equal(t, http.StatusBadRequest, res.Status, body)
		assert.Equal(t, "Invalid file upload request.", decodeErr(t, res).Message, body)
	}

	small := newHandler(t, []*simpleupload.Route{mustRoute(t, "img")}, simpleupload.WithMaxBodySize(16))
	res = send(t, small, simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a", Size: 1, Type: "a/b"}}})
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

type albumMeta struct {
	AlbumID string `json:"albumId"`
}

func (m albumMeta) Validate() error {
	if m.AlbumID == "" {
		return errors.New("albumId is required")
	}
	return nil
}

func TestHandle_Hooks(t *testing.T) {
	var beforeCalls, genCalls, afterCalls atomic.Int32

	route := mustRoute(t, "album",
		simpleupload.WithMultipleFiles(3),
		simpleupload.WithMetadataValidator(simpleupload.StructValidator[albumMeta]()),
		simpleupload.WithBeforeUpload(func(ctx context.Context, req simpleupload.BeforeUploadRequest) (*simpleupload.BeforeUploadResult, error) {
			beforeCalls.Add(1)
			meta := req.ClientMetadata.(albumMeta)
			if meta.AlbumID == "locked" {
				return nil, simpleupload.RejectUpload("Album is locked.")
			}
			if meta.AlbumID == "broken" {
				return nil, errors.New("database down")
			}
			return &simpleupload.BeforeUploadResult{
				Bucket: "albums",
				ObjectInfo: func(ctx context.Context, f simpleupload.FileDescriptor) (*simpleupload.ObjectInfo, error) {
					genCalls.Add(1)
					return &simpleupload.ObjectInfo{
						Key:          meta.AlbumID + "/" + f.Name,
						Metadata:     map[string]string{"album": meta.AlbumID},
						CacheControl: "max-age=3600",
					}, nil
				},
				Metadata: map[string]any{"album": meta.AlbumID},
			}, nil
		}),
		simpleupload.WithAfterSignedURL(func(ctx context.Context, req simpleupload.AfterSignedURLRequest) (*simpleupload.AfterSignedURLResult, error) {
			afterCalls.Add(1)
			keys := make([]string, len(req.Files))
			for i, f := range req.Files {
				keys[i] = f.ObjectInfo.Key
			}
			return &simpleupload.AfterSignedURLResult{Metadata: map[string]any{
				"keys":  keys,
				"album": req.Metadata.(map[string]any)["album"],
			}}, nil
		}),
	)
	h := newHandler(t, []*simpleupload.Route{route})

	files := []file{
		{Name: "a.jpg", Size: 10, Type: "image/jpeg"},
		{Name: "b.jpg", Size: 20, Type: "image/jpeg"},
		{Name: "c.jpg", Size: 30, Type: "image/jpeg"},
	}

	t.Run("success", func(t *testing.T) {
		res := send(t, h, map[string]any{"route": "album", "files": files, "metadata": map[string]any{"albumId": "trip"}})
		out := decodeOK(t, res)

		assert.Equal(t, int32(1), beforeCalls.Load())
		assert.Equal(t, int32(3), genCalls.Load())
		assert.Equal(t, int32(1), afterCalls.Load())

		require.Len(t, out.Files, 3)
		for i, f := range out.Files {
			assert.Equal(t, "trip/"+files[i].Name, f.File.ObjectInfo.Key)
			assert.Equal(t, "max-age=3600", f.File.ObjectInfo.CacheControl)
			assert.True(t, strings.HasPrefix(f.SignedURL, "https://albums.s3.us-east-1.amazonaws.com/trip/"), f.SignedURL)

			u, err := url.Parse(f.SignedURL)
			require.NoError(t, err)
			assert.Equal(t, "cache-control;content-length;content-type;host;x-amz-meta-album", u.Query().Get("X-Amz-SignedHeaders"))
		}
		assert.JSONEq(t, `{"album":"trip","keys":["trip/a.jpg","trip/b.jpg","trip/c.jpg"]}`, string(out.Metadata))
	})

	t.Run("rejected", func(t *testing.T) {
		res := send(t, h, map[string]any{"route": "album", "files": files[:1], "metadata": map[string]any{"albumId": "locked"}})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, simpleupload.ErrorDetail{Type: simpleupload.ErrorRejected, Message: "Album is locked."}, decodeErr(t, res))
	})

	t.Run("hook bug is a server error", func(t *testing.T) {
		res := send(t, h, map[string]any{"route": "album", "files": files[:1], "metadata": map[string]any{"albumId": "broken"}})
		assert.Equal(t, http.StatusInternalServerError, res.Status)
		assert.Equal(t, simpleupload.ErrorInternal, decodeErr(t, res).Type)
	})

	t.Run("invalid metadata", func(t *testing.T) {
		for _, meta := range []any{nil, map[string]any{"albumId": ""}, map[string]any{"albumId": "x", "extra": 1}} {
			res := send(t, h, map[string]any{"route": "album", "files": files[:1], "metadata": meta})
			assert.Equal(t, http.StatusBadRequest, res.Status)
			assert.Equal(t, simpleupload.ErrorDetail{Type: simpleupload.ErrorInvalidMetadata, Message: "Invalid client metadata."}, decodeErr(t, res))
		}
	})
}

func TestHandle_SingleFileHooks(t *testing.T) {
	route := mustRoute(t, "avatar",
		simpleupload.WithSingleBeforeUpload(func(ctx context.Context, req simpleupload.SingleBeforeUploadRequest) (*simpleupload.SingleBeforeUploadResult, error) {
			if req.File.Name == "anonymous.png" {
				return nil, simpleupload.RejectUpload("")
			}
			return &simpleupload.SingleBeforeUploadResult{
				ObjectInfo: &simpleupload.ObjectInfo{Key: "custom/" + req.File.Name, ACL: "public-read", StorageClass: "STANDARD_IA"},
				Metadata:   "from-before",
			}, nil
		}),
		simpleupload.WithSingleAfterSignedURL(func(ctx context.Context, req simpleupload.SingleAfterSignedURLRequest) (*simpleupload.AfterSignedURLResult, error) {
			return &simpleupload.AfterSignedURLResult{Metadata: map[string]string{"key": req.File.ObjectInfo.Key, "before": req.Metadata.(string)}}, nil
		}),
	)
	client := testClient(t)
	h := newHandler(t, []*simpleupload.Route{route})

	out := decodeOK(t, send(t, h, simpleupload.UploadRequest{Route: "avatar", Files: []file{{Name: "a.jpg", Size: 500000, Type: "image/jpeg"}}}))
	require.Len(t, out.Files, 1)
	info := out.Files[0].File.ObjectInfo
	assert.Equal(t, "custom/a.jpg", info.Key)
	assert.Equal(t, "public-read", info.ACL)
	assert.JSONEq(t, `{"key":"custom/a.jpg","before":"from-before"}`, string(out.Metadata))

	header := simpleupload.ObjectHeaders("image/jpeg", info)
	header.Set("Content-Length", "500000")
	assert.NoError(t, testSigner(t, client).Verify(http.MethodPut, out.Files[0].SignedURL, header))

	res := send(t, h, simpleupload.UploadRequest{Route: "avatar", Files: []file{{Name: "anonymous.png", Size: 1, Type: "image/png"}}})
	assert.Equal(t, simpleupload.ErrorDetail{Type: simpleupload.ErrorRejected, Message: "Upload rejected."}, decodeErr(t, res))
}

func TestHandle_PostForm(t *testing.T) {
	route := mustRoute(t, "docs",
		simpleupload.WithUploadMethod(simpleupload.MethodPost),
		simpleupload.WithSingleBeforeUpload(func(ctx context.Context, req simpleupload.SingleBeforeUploadRequest) (*simpleupload.SingleBeforeUploadResult, error) {
			return &simpleupload.SingleBeforeUploadResult{ObjectInfo: &simpleupload.ObjectInfo{
				Metadata: map[string]string{"owner": "alice"},
				ACL:      "private",
			}}, nil
		}),
	)
	h := newHandler(t, []*simpleupload.Route{route})

	out := decodeOK(t, send(t, h, simpleupload.UploadRequest{Route: "docs", Files: []file{{Name: "Report Q1.pdf", Size: 2048, Type: "application/pdf"}}}))
	require.Len(t, out.Files, 1)
	form := out.Files[0].PostForm
	require.NotNil(t, form)
	assert.Empty(t, out.Files[0].SignedURL)

	assert.Equal(t, "https://uploads.s3.us-east-1.amazonaws.com/", form.URL)
	key := out.Files[0].File.ObjectInfo.Key
	assert.True(t, strings.HasSuffix(key, "-report-q1.pdf"), key)

	names := make([]string, len(form.Fields))
	for i, f := range form.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"key", "Content-Type", "acl", "x-amz-meta-owner",
		"policy", "x-amz-algorithm", "x-amz-credential", "x-amz-date", "x-amz-signature",
	}, names)
	assert.Equal(t, key, form.Fields.Get("key"))
	assert.Equal(t, "application/pdf", form.Fields.Get("Content-Type"))
}

func TestHandle_Multipart(t *testing.T) {
	client := testClient(t)
	backend := &fakeMultipart{}
	ledger := sessions.NewMemoryStore()

	route := mustRoute(t, "videos",
		simpleupload.WithMaxFileSize(100<<20),
		simpleupload.WithMultipart(simpleupload.MultipartConfig{PartSize: 5_000_000}),
	)
	h := newHandler(t, []*simpleupload.Route{route},
		simpleupload.WithMultipartCreator(backend),
		simpleupload.WithSessionRecorder(ledger),
	)

	out := decodeOK(t, send(t, h, simpleupload.UploadRequest{Route: "videos", Files: []file{{Name: "clip.mp4", Size: 12_000_000, Type: "video/mp4"}}}))
	assert.Empty(t, out.Files)
	require.NotNil(t, out.Multipart)
	assert.Equal(t, int64(5_000_000), out.Multipart.PartSize)
	require.Len(t, out.Multipart.Files, 1)

	mf := out.Multipart.Files[0]
	assert.Equal(t, "upload-1", mf.UploadID)
	key := mf.File.ObjectInfo.Key

	sizes := make([]int64, len(mf.Parts))
	numbers := make([]int, len(mf.Parts))
	s := testSigner(t, client)
	for i, p := range mf.Parts {
		sizes[i] = p.Size
		numbers[i] = p.PartNumber

		u, err := url.Parse(p.SignedURL)
		require.NoError(t, err)
		assert.Equal(t, "upload-1", u.Query().Get("uploadId"))
		assert.Equal(t, strconv.Itoa(p.PartNumber), u.Query().Get("partNumber"))
		assert.Equal(t, "1500", u.Query().Get("X-Amz-Expires"))
		assert.Equal(t, "/"+key, u.Path)
		assert.NoError(t, s.Verify(http.MethodPut, p.SignedURL, http.Header{"Content-Length": {strconv.FormatInt(p.Size, 10)}}))
	}
	assert.Equal(t, []int64{5000000, 5000000, 2000000}, sizes)
	assert.Equal(t, []int{1, 2, 3}, numbers)

	assert.NoError(t, s.Verify(http.MethodPost, mf.CompleteSignedURL, nil))
	assert.NoError(t, s.Verify(http.MethodDelete, mf.AbortSignedURL, nil))
	assert.ErrorIs(t, s.Verify(http.MethodPost, mf.AbortSignedURL, nil), signer.ErrInvalidSignature)

	require.Len(t, backend.created, 1)
	assert.Equal(t, storage.MultipartParams{Bucket: "uploads", Key: key, ContentType: "video/mp4", Metadata: map[string]string{}}, backend.created[0])

	sess, err := ledger.Get(context.Background(), "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "videos", sess.Route)
	assert.Equal(t, key, sess.Key)
	assert.Equal(t, testNow, sess.CreatedAt)

	// multipart routes are not bound by the single request ceiling
	big := mustRoute(t, "archive", simpleupload.WithMaxFileSize(10<<30), simpleupload.WithMultipart(simpleupload.MultipartConfig{}))
	h = newHandler(t, []*simpleupload.Route{big}, simpleupload.WithMultipartCreator(backend))
	out = decodeOK(t, send(t, h, simpleupload.UploadRequest{Route: "archive", Files: []file{{Name: "x.tar", Size: 6 << 30, Type: "application/x-tar"}}}))
	assert.Len(t, out.Multipart.Files[0].Parts, int((6<<30+simpleupload.DefaultPartSize-1)/simpleupload.DefaultPartSize))
}

func TestHandle_MultipartCreateFailureAbortsSiblings(t *testing.T) {
	backend := &fakeMultipart{failKey: "b.bin"}
	route := mustRoute(t, "bins",
		simpleupload.WithMultipleFiles(2),
		simpleupload.WithMultipart(simpleupload.MultipartConfig{PartSize: 1024}),
		simpleupload.WithBeforeUpload(func(ctx context.Context, req simpleupload.BeforeUploadRequest) (*simpleupload.BeforeUploadResult, error) {
			return &simpleupload.BeforeUploadResult{ObjectInfo: func(ctx context.Context, f simpleupload.FileDescriptor) (*simpleupload.ObjectInfo, error) {
				return &simpleupload.ObjectInfo{Key: f.Name}, nil
			}}, nil
		}),
	)
	h := newHandler(t, []*simpleupload.Route{route}, simpleupload.WithMultipartCreator(backend))

	res := send(t, h, simpleupload.UploadRequest{Route: "bins", Files: []file{
		{Name: "a.bin", Size: 4096, Type: "application/octet-stream"},
		{Name: "b.bin", Size: 4096, Type: "application/octet-stream"},
	}})
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, simpleupload.ErrorInternal, decodeErr(t, res).Type)
	assert.Equal(t, []string{"upload-1"}, backend.aborted)
}

func TestHandle_Idempotent(t *testing.T) {
	route := mustRoute(t, "img", simpleupload.WithFileTypes("image/*"))
	req := simpleupload.UploadRequest{Route: "img", Files: []file{{Name: "a.jpg", Size: 100, Type: "image/jpeg"}}}

	h := newHandler(t, []*simpleupload.Route{route})
	first := decodeOK(t, send(t, h, req))
	second := decodeOK(t, send(t, h, req))

	k1, k2 := first.Files[0].File.ObjectInfo.Key, second.Files[0].File.ObjectInfo.Key
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1[strings.Index(k1, "-a.jpg"):], k2[strings.Index(k2, "-a.jpg"):])

	fixed := newHandler(t, []*simpleupload.Route{route}, simpleupload.WithKeyGenerator(func(f simpleupload.FileDescriptor) string { return "fixed/" + f.Name }))
	assert.Equal(t, send(t, fixed, req).Body, send(t, fixed, req).Body)
}

func TestHandle_EchoesCorrelationID(t *testing.T) {
	h := newHandler(t, []*simpleupload.Route{mustRoute(t, "img", simpleupload.WithMultipleFiles(2))})
	out := decodeOK(t, send(t, h, simpleupload.UploadRequest{Route: "img", Files: []file{
		{ID: "f-1", Name: "a.jpg", Size: 1, Type: "image/jpeg"},
		{ID: "f-2", Name: "a.jpg", Size: 1, Type: "image/jpeg"},
	}}))
	assert.Equal(t, "f-1", out.Files[0].File.ID)
	assert.Equal(t, "f-2", out.Files[1].File.ID)
}

func TestNew_Validation(t *testing.T) {
	client := testClient(t)
	mp := mustRoute(t, "mp", simpleupload.WithMultipart(simpleupload.MultipartConfig{}))

	_, err := simpleupload.New(nil, "b", nil)
	assert.Error(t, err)
	_, err = simpleupload.New(client, "", nil)
	assert.Error(t, err)
	_, err = simpleupload.New(client, "b", []*simpleupload.Route{mp})
	assert.ErrorIs(t, err, simpleupload.ErrInvalidRoute)
	_, err = simpleupload.New(client, "b", []*simpleupload.Route{mustRoute(t, "x"), mustRoute(t, "x")})
	assert.ErrorIs(t, err, simpleupload.ErrInvalidRoute)
}

func TestHandle_HooksSeeRequestHeader(t *testing.T) {
	route := mustRoute(t, "private",
		simpleupload.WithSingleBeforeUpload(func(ctx context.Context, req simpleupload.SingleBeforeUploadRequest) (*simpleupload.SingleBeforeUploadResult, error) {
			if simpleupload.RequestHeader(ctx).Get("Authorization") != "Bearer letmein" {
				return nil, simpleupload.RejectUpload("Unauthorized.")
			}
			return &simpleupload.SingleBeforeUploadResult{}, nil
		}))
	h := newHandler(t, []*simpleupload.Route{route})

	body := `{"route":"private","files":[{"name":"a.txt","size":3,"type":"text/plain"}]}`
	do := func(auth string) *simpleupload.Response {
		header := http.Header{}
		if auth != "" {
			header.Set("Authorization", auth)
		}
		return h.Handle(context.Background(), &simpleupload.Request{Method: http.MethodPost, Header: header, Body: strings.NewReader(body)})
	}

	decodeOK(t, do("Bearer letmein"))

	res := do("")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, simpleupload.ErrorDetail{Type: simpleupload.ErrorRejected, Message: "Unauthorized."}, decodeErr(t, res))
}

func TestHandle_ObjectInfoPanicIsServerError(t *testing.T) {
	route := mustRoute(t, "gallery",
		simpleupload.WithMultipleFiles(2),
		simpleupload.WithBeforeUpload(func(ctx context.Context, req simpleupload.BeforeUploadRequest) (*simpleupload.BeforeUploadResult, error) {
			return &simpleupload.BeforeUploadResult{
				ObjectInfo: func(ctx context.Context, f simpleupload.FileDescriptor) (*simpleupload.ObjectInfo, error) {
					panic("object info bug")
				},
			}, nil
		}))

	var logs bytes.Buffer
	h := newHandler(t, []*simpleupload.Route{route}, simpleupload.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res := send(t, h, simpleupload.UploadRequest{Route: "gallery", Files: []file{
		{Name: "a.jpg", Size: 10, Type: "image/jpeg"},
		{Name: "b.jpg", Size: 20, Type: "image/jpeg"},
	}})

	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, simpleupload.ErrorDetail{Type: simpleupload.ErrorInternal, Message: "Internal server error."}, decodeErr(t, res))
	assert.Contains(t, logs.String(), "upload hook panic")
	assert.Contains(t, logs.String(), "object info bug")
	assert.Contains(t, logs.String(), "hook=object_info")
}
