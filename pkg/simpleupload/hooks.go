package simpleupload

import (
	"context"
	"net/http"
)

type requestHeaderKey struct{}

func withRequestHeader(ctx context.Context, h http.Header) context.Context {
	if h == nil {
		return ctx
	}
	return context.WithValue(ctx, requestHeaderKey{}, h)
}

// RequestHeader returns the headers of the upload request a hook is running for.
// Hooks use it to authenticate the caller.
func RequestHeader(ctx context.Context) http.Header {
	h, _ := ctx.Value(requestHeaderKey{}).(http.Header)
	if h == nil {
		return http.Header{}
	}
	return h
}

// Lifecycle hooks run once per request, never once per file. Routes accept
// either the multi-file or the single-file variant depending on how they were
// declared; both are normalized into one internal signature by NewRoute.

// ObjectInfoFunc produces object info for one file. It runs concurrently
// for every file in the request. A zero Key keeps the generated default key.
type ObjectInfoFunc func(ctx context.Context, file FileDescriptor) (*ObjectInfo, error)

// BeforeUploadRequest is passed to multi-file before-upload hooks
type BeforeUploadRequest struct {
	Files          []FileDescriptor
	ClientMetadata any
}

// BeforeUploadResult lets a hook redirect the bucket, customise objects and
// hand intermediate metadata to the after-signed-URL hook.
type BeforeUploadResult struct {
	Bucket     string
	ObjectInfo ObjectInfoFunc
	Metadata   any
}

// BeforeUploadFunc is the before-upload hook of a multi-file route.
// Returning RejectUpload refuses the request with a 400.
type BeforeUploadFunc func(ctx context.Context, req BeforeUploadRequest) (*BeforeUploadResult, error)

// SingleBeforeUploadRequest is passed to single-file before-upload hooks
type SingleBeforeUploadRequest struct {
	File           FileDescriptor
	ClientMetadata any
}

// SingleBeforeUploadResult is BeforeUploadResult for a single file
type SingleBeforeUploadResult struct {
	Bucket     string
	ObjectInfo *ObjectInfo
	Metadata   any
}

// SingleBeforeUploadFunc is the before-upload hook of a single-file route
type SingleBeforeUploadFunc func(ctx context.Context, req SingleBeforeUploadRequest) (*SingleBeforeUploadResult, error)

// AfterSignedURLRequest is passed to multi-file after-signed-URL hooks
type AfterSignedURLRequest struct {
	Files          []FileInfo
	Metadata       any
	ClientMetadata any
}

// AfterSignedURLResult carries JSON-serializable metadata echoed to the client verbatim
type AfterSignedURLResult struct {
	Metadata any
}

// AfterSignedURLFunc is the after-signed-URL hook of a multi-file route
type AfterSignedURLFunc func(ctx context.Context, req AfterSignedURLRequest) (*AfterSignedURLResult, error)

// SingleAfterSignedURLRequest is passed to single-file after-signed-URL hooks
type SingleAfterSignedURLRequest struct {
	File           FileInfo
	Metadata       any
	ClientMetadata any
}

// SingleAfterSignedURLFunc is the after-signed-URL hook of a single-file route
type SingleAfterSignedURLFunc func(ctx context.Context, req SingleAfterSignedURLRequest) (*AfterSignedURLResult, error)

// normalized signatures used by the handler
type beforeUploadFunc func(ctx context.Context, files []FileDescriptor, clientMeta any) (*BeforeUploadResult, error)

type afterSignedURLFunc func(ctx context.Context, files []FileInfo, meta, clientMeta any) (any, error)

func normalizeBeforeUpload(fn BeforeUploadFunc) beforeUploadFunc {
	return func(ctx context.Context, files []FileDescriptor, clientMeta any) (*BeforeUploadResult, error) {
		return fn(ctx, BeforeUploadRequest{Files: files, ClientMetadata: clientMeta})
	}
}

func normalizeSingleBeforeUpload(fn SingleBeforeUploadFunc) beforeUploadFunc {
	return func(ctx context.Context, files []FileDescriptor, clientMeta any) (*BeforeUploadResult, error) {
		res, err := fn(ctx, SingleBeforeUploadRequest{File: files[0], ClientMetadata: clientMeta})
		if err != nil || res == nil {
			return nil, err
		}
		out := &BeforeUploadResult{Bucket: res.Bucket, Metadata: res.Metadata}
		if res.ObjectInfo != nil {
			info := *res.ObjectInfo
			out.ObjectInfo = func(context.Context, FileDescriptor) (*ObjectInfo, error) {
				return &info, nil
			}
		}
		return out, nil
	}
}

func normalizeAfterSignedURL(fn AfterSignedURLFunc) afterSignedURLFunc {
	return func(ctx context.Context, files []FileInfo, meta, clientMeta any) (any, error) {
		res, err := fn(ctx, AfterSignedURLRequest{Files: files, Metadata: meta, ClientMetadata: clientMeta})
		if err != nil || res == nil {
			return nil, err
		}
		return res.Metadata, nil
	}
}

func normalizeSingleAfterSignedURL(fn SingleAfterSignedURLFunc) afterSignedURLFunc {
	return func(ctx context.Context, files []FileInfo, meta, clientMeta any) (any, error) {
		res, err := fn(ctx, SingleAfterSignedURLRequest{File: files[0], Metadata: meta, ClientMetadata: clientMeta})
		if err != nil || res == nil {
			return nil, err
		}
		return res.Metadata, nil
	}
}
