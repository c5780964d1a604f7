package client

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// ErrMissingETag means storage accepted a part without exposing its ETag,
// usually because the bucket CORS rules do not list ETag in ExposeHeaders
var ErrMissingETag = errors.New("part response has no ETag header")

// abortTimeout bounds the cleanup abort so a failed file is reported promptly
const abortTimeout = 10 * time.Second

// CompletedPart is one entry of a completion manifest
type CompletedPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUpload struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []CompletedPart `xml:"Part"`
}

// uploadMultipart sends every part, then completes the session. Any failure
// aborts the session before returning.
func (c *Client) uploadMultipart(ctx context.Context, t *Transfer, mf simpleupload.MultipartFile, partBatchSize int) error {
	parts, err := c.uploadParts(ctx, t, mf, partBatchSize)
	if err == nil {
		err = c.CompleteMultipart(ctx, mf.CompleteSignedURL, parts)
	}
	if err != nil {
		c.cleanup(ctx, mf)
		return err
	}
	return nil
}

func (c *Client) uploadParts(ctx context.Context, t *Transfer, mf simpleupload.MultipartFile, partBatchSize int) ([]CompletedPart, error) {
	file := t.file
	completed := make([]CompletedPart, len(mf.Parts))

	sections := make([]*io.SectionReader, len(mf.Parts))
	var offset int64
	for i, part := range mf.Parts {
		if part.Size < 0 || offset+part.Size > file.Size {
			return nil, fmt.Errorf("part %d ends past the end of %s (%d bytes)", part.PartNumber, file.Name, file.Size)
		}
		sections[i] = file.section(offset, part.Size)
		offset += part.Size
	}

	g, gctx := errgroup.WithContext(ctx)
	if partBatchSize > 0 {
		g.SetLimit(partBatchSize)
	}

	for i, part := range mf.Parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			etag, err := c.putPart(gctx, part, sections[i], func(sent int64) {
				t.setPartProgress(i, fraction(sent, part.Size))
			})
			if err != nil {
				return fmt.Errorf("part %d: %w", part.PartNumber, err)
			}
			t.setPartProgress(i, 1)
			completed[i] = CompletedPart{PartNumber: part.PartNumber, ETag: etag}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// report the caller's cancellation rather than the sibling that noticed it
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return completed, nil
}

func (c *Client) putPart(ctx context.Context, part simpleupload.Part, section *io.SectionReader, progress ProgressFunc) (string, error) {
	var etag string
	err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		body := c.bodyReader(ctx, io.NewSectionReader(section, 0, part.Size), part.Size, progress)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, part.SignedURL, body)
		if err != nil {
			return nil, err
		}
		req.ContentLength = part.Size
		return req, nil
	}, func(resp *http.Response) error {
		_, _ = io.Copy(io.Discard, resp.Body)
		etag = resp.Header.Get("ETag")
		if etag == "" {
			return ErrMissingETag
		}
		return nil
	})
	return etag, err
}

// CompleteMultipart submits the part manifest, sorted by part number, to a
// signed complete URL. A 200 response carrying an XML error counts as failure.
func (c *Client) CompleteMultipart(ctx context.Context, completeURL string, parts []CompletedPart) error {
	sorted := make([]CompletedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	body, err := xml.Marshal(completeMultipartUpload{Parts: sorted})
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}

	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, completeURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/xml")
		return req, nil
	}, func(resp *http.Response) error {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return fmt.Errorf("failed to read completion response: %w", err)
		}
		if s3err, ok := parseS3Error(data); ok {
			return s3err
		}
		return nil
	})
}

// AbortMultipart deletes a multipart session through its signed abort URL.
// It makes a single attempt and is never retried.
func (c *Client) AbortMultipart(ctx context.Context, abortURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, abortURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.roundTrip(req, nil)
}

// cleanup is the best-effort abort after a failed multipart transfer. It runs
// even when ctx is cancelled, sends one request bounded by abortTimeout, and
// its error is only logged.
func (c *Client) cleanup(ctx context.Context, mf simpleupload.MultipartFile) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	if err := c.AbortMultipart(ctx, mf.AbortSignedURL); err != nil {
		c.logger.Warn("failed to abort multipart upload",
			"key", mf.File.ObjectInfo.Key,
			"upload_id", mf.UploadID,
			"error", err)
	}
}
