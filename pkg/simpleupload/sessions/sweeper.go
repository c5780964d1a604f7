package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

// DefaultMaxAge is how long a session may stay open before the sweeper aborts it
const DefaultMaxAge = 24 * time.Hour

const defaultBatchSize = 100

// SweepResult summarises one sweep
type SweepResult struct {
	Aborted int // sessions discarded on storage
	Gone    int // sessions storage no longer knew (completed or aborted by the client)
	Failed  int // sessions left in the ledger for the next sweep
}

// Sweeper aborts multipart sessions older than MaxAge
type Sweeper struct {
	store     Store
	aborter   storage.MultipartAborter
	maxAge    time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithMaxAge sets the session age after which sessions are aborted
func WithMaxAge(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.maxAge = d
	}
}

// WithBatchSize limits how many sessions one sweep examines
func WithBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		s.batchSize = n
	}
}

// WithLogger sets the logger used for sweep reports
func WithLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper creates a Sweeper over a ledger and a storage aborter
func NewSweeper(store Store, aborter storage.MultipartAborter, opts ...SweeperOption) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if aborter == nil {
		return nil, errors.New("multipart aborter is required")
	}

	s := &Sweeper{
		store:     store,
		aborter:   aborter,
		maxAge:    DefaultMaxAge,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", s.maxAge)
	}
	return s, nil
}

// Sweep aborts one batch of expired sessions. Per-session failures are
// counted and logged; only ledger read failures are returned.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	expired, err := s.store.ListOlderThan(ctx, s.now().Add(-s.maxAge), s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list expired sessions: %w", err)
	}

	for _, sess := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := s.aborter.AbortMultipartUpload(ctx, sess.Bucket, sess.Key, sess.UploadID)
		switch {
		case err == nil:
			res.Aborted++
		case errors.Is(err, storage.ErrNoSuchUpload):
			res.Gone++
		default:
			res.Failed++
			s.logger.Warn("failed to abort multipart session",
				"upload_id", sess.UploadID, "bucket", sess.Bucket, "key", sess.Key, "error", err)
			continue
		}

		if err := s.store.Forget(ctx, sess.UploadID); err != nil {
			s.logger.Warn("failed to forget multipart session", "upload_id", sess.UploadID, "error", err)
		}
	}

	if len(expired) > 0 {
		s.logger.Info("swept multipart sessions",
			"aborted", res.Aborted, "gone", res.Gone, "failed", res.Failed)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("session sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
