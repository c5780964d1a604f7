package client

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ProgressFunc receives the bytes sent so far
type ProgressFunc func(bytesSent int64)

// progressReader wraps an io.Reader to track upload progress and apply the
// client bandwidth limit
type progressReader struct {
	ctx      context.Context
	reader   io.Reader
	sent     int64
	callback ProgressFunc
	limiter  *rate.Limiter
}

func newProgressReader(ctx context.Context, r io.Reader, limiter *rate.Limiter, callback ProgressFunc) *progressReader {
	return &progressReader{ctx: ctx, reader: r, limiter: limiter, callback: callback}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if pr.limiter != nil && len(p) > pr.limiter.Burst() {
		p = p[:pr.limiter.Burst()]
	}

	n, err := pr.reader.Read(p)
	if n > 0 {
		if pr.limiter != nil {
			if werr := pr.limiter.WaitN(pr.ctx, n); werr != nil {
				return n, werr
			}
		}
		pr.sent += int64(n)
		if pr.callback != nil {
			pr.callback(pr.sent)
		}
	}
	return n, err
}
