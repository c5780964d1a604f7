package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

// Backend opens and aborts multipart sessions through the AWS SDK
type Backend struct {
	client *s3.Client
}

var _ storage.MultipartBackend = (*Backend)(nil)

// New creates a Backend that talks to the same endpoint, region and
// credentials the signer uses, so sessions and signed part URLs line up.
func New(ctx context.Context, c *storage.Client) (*Backend, error) {
	if c == nil {
		return nil, errors.New("storage client is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.Credentials.AccessKeyID,
			c.Credentials.SecretAccessKey,
			c.Credentials.SessionToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint())
		o.UsePathStyle = c.PathStyle
	})

	return &Backend{client: client}, nil
}

// NewFromClient wraps an existing SDK client
func NewFromClient(client *s3.Client) *Backend {
	return &Backend{client: client}
}

// CreateMultipartUpload starts a session and returns its upload id
func (b *Backend) CreateMultipartUpload(ctx context.Context, params storage.MultipartParams) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(params.Bucket),
		Key:      aws.String(params.Key),
		Metadata: params.Metadata,
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}
	if params.CacheControl != "" {
		input.CacheControl = aws.String(params.CacheControl)
	}
	if params.ACL != "" {
		input.ACL = types.ObjectCannedACL(params.ACL)
	}
	if params.StorageClass != "" {
		input.StorageClass = types.StorageClass(params.StorageClass)
	}

	out, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("create multipart upload %s/%s: %w", params.Bucket, params.Key, err)
	}
	if out.UploadId == nil || *out.UploadId == "" {
		return "", fmt.Errorf("create multipart upload %s/%s: empty upload id", params.Bucket, params.Key)
	}
	return *out.UploadId, nil
}

// AbortMultipartUpload discards a session and every part uploaded to it
func (b *Backend) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		// Some providers only report the code, not the typed error.
		if isAwsError[*types.NoSuchUpload](err) || isAwsErrorCode(err, "NoSuchUpload") {
			return storage.ErrNoSuchUpload
		}
		return fmt.Errorf("abort multipart upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

func isAwsError[T error](err error) bool {
	var awsErr T
	return errors.As(err, &awsErr)
}

func isAwsErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}
