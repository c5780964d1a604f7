// Package minio implements the multipart session contract with minio-go.
//
// It is the lighter alternative to the AWS SDK backend and works against
// MinIO and most S3-compatible services.
package minio

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

// Backend opens and aborts multipart sessions through minio.Core
type Backend struct {
	core *minio.Core
}

var _ storage.MultipartBackend = (*Backend)(nil)

// New creates a Backend bound to the client's endpoint and credentials
func New(c *storage.Client) (*Backend, error) {
	if c == nil {
		return nil, errors.New("storage client is required")
	}

	lookup := minio.BucketLookupDNS
	if c.PathStyle {
		lookup = minio.BucketLookupPath
	}

	core, err := minio.NewCore(c.Hostname, &minio.Options{
		Creds:        credentials.NewStaticV4(c.Credentials.AccessKeyID, c.Credentials.SecretAccessKey, c.Credentials.SessionToken),
		Secure:       c.Secure,
		Region:       c.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Backend{core: core}, nil
}

// CreateMultipartUpload starts a session and returns its upload id
func (b *Backend) CreateMultipartUpload(ctx context.Context, params storage.MultipartParams) (string, error) {
	meta := make(map[string]string, len(params.Metadata)+1)
	for k, v := range params.Metadata {
		meta[k] = v
	}
	// x-amz-* keys are sent as raw headers rather than x-amz-meta-*
	if params.ACL != "" {
		meta["x-amz-acl"] = params.ACL
	}

	uploadID, err := b.core.NewMultipartUpload(ctx, params.Bucket, params.Key, minio.PutObjectOptions{
		ContentType:  params.ContentType,
		CacheControl: params.CacheControl,
		StorageClass: params.StorageClass,
		UserMetadata: meta,
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload %s/%s: %w", params.Bucket, params.Key, err)
	}
	return uploadID, nil
}

// AbortMultipartUpload discards a session and every part uploaded to it
func (b *Backend) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	err := b.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
			return storage.ErrNoSuchUpload
		}
		return fmt.Errorf("abort multipart upload %s/%s: %w", bucket, key, err)
	}
	return nil
}
