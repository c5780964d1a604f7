package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

// putObject streams the file to a signed PUT URL with exactly the signed headers
func (c *Client) putObject(ctx context.Context, t *Transfer, signed simpleupload.SignedFile) error {
	file := t.file
	header := simpleupload.ObjectHeaders(signed.File.Type, signed.File.ObjectInfo)

	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		body := c.bodyReader(ctx, file.section(0, file.Size), file.Size, func(sent int64) {
			t.setProgress(fraction(sent, file.Size))
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.SignedURL, body)
		if err != nil {
			return nil, err
		}
		req.ContentLength = file.Size
		for k, v := range header {
			req.Header[k] = v
		}
		return req, nil
	}, nil)
}

// postObject sends a multipart form: the signed fields in order, then the file
func (c *Client) postObject(ctx context.Context, t *Transfer, form *signer.PostForm) error {
	file := t.file
	prefix, suffix, contentType, err := formEnvelope(form.Fields, file.Name, file.Type)
	if err != nil {
		return err
	}
	total := int64(len(prefix)) + file.Size + int64(len(suffix))

	return c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		content := c.bodyReader(ctx, file.section(0, file.Size), file.Size, func(sent int64) {
			t.setProgress(fraction(sent, file.Size))
		})
		body := io.MultiReader(bytes.NewReader(prefix), content, bytes.NewReader(suffix))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.URL, body)
		if err != nil {
			return nil, err
		}
		req.ContentLength = total
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// formEnvelope renders everything of a form body except the file bytes, so the
// body can be streamed with an exact Content-Length
func formEnvelope(fields signer.FormFields, filename, fileType string) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write form field %s: %w", f.Name, err)
		}
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", fileType)
	if _, err := w.CreatePart(h); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	prefix = bytes.Clone(buf.Bytes())

	buf.Reset()
	if err := w.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	suffix = bytes.Clone(buf.Bytes())

	return prefix, suffix, w.FormDataContentType(), nil
}

func (c *Client) bodyReader(ctx context.Context, r io.Reader, size int64, progress ProgressFunc) io.Reader {
	if size == 0 {
		return http.NoBody
	}
	return newProgressReader(ctx, r, c.limiter, progress)
}

func fraction(sent, size int64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(sent) / float64(size)
}
