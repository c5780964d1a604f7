package storage

import "context"

// MultipartParams describes the object a multipart session will produce.
// Every header bound here must also be signed into the part and complete URLs.
type MultipartParams struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	ACL          string
	StorageClass string
	Metadata     map[string]string
}

// MultipartCreator opens multipart sessions on storage
type MultipartCreator interface {
	CreateMultipartUpload(ctx context.Context, params MultipartParams) (uploadID string, err error)
}

// MultipartAborter discards multipart sessions. Implementations return
// ErrNoSuchUpload when the session is already completed or aborted.
type MultipartAborter interface {
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// MultipartBackend is the storage-side collaborator of the upload handler and the session sweeper
type MultipartBackend interface {
	MultipartCreator
	MultipartAborter
}
