package client

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxErrorBody = 64 * 1024

// StatusError is a non-2xx response from the upload endpoint or storage
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if s3err, ok := parseS3Error(e.Body); ok {
		return fmt.Sprintf("status %d: %s: %s", e.StatusCode, s3err.Code, s3err.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// S3Error is the XML error document storage returns
type S3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func (e *S3Error) Error() string {
	return e.Code + ": " + e.Message
}

func parseS3Error(body []byte) (*S3Error, bool) {
	var s3err S3Error
	if err := xml.Unmarshal(body, &s3err); err != nil || s3err.Code == "" {
		return nil, false
	}
	return &s3err, true
}

// do sends the request built by newReq until it succeeds, a 4xx comes back,
// attempts run out or ctx is done. handle consumes 2xx responses; an error
// from it is retried like a 5xx unless it is a 4xx StatusError.
func (c *Client) do(ctx context.Context, newReq func(context.Context) (*http.Request, error), handle func(*http.Response) error) error {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.retryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := newReq(ctx)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		err = c.roundTrip(req, handle)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return err
		}

		c.logger.Debug("request failed, retrying",
			"method", req.Method,
			"host", req.URL.Host,
			"attempt", attempt+1,
			"error", err)
	}

	if c.retryAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *Client) roundTrip(req *http.Request, handle func(*http.Response) error) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	if handle != nil {
		return handle(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
