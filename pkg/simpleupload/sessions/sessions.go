// Package sessions keeps a ledger of multipart sessions issued by the upload
// handler so orphans left behind by failed or abandoned clients can be
// aborted later. Client-side aborts are best effort; the sweeper is the
// out-of-band reconciliation.
package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound indicates the ledger has no entry for an upload id
var ErrSessionNotFound = errors.New("session not found")

// Session is one multipart upload issued to a client
type Session struct {
	UploadID  string
	Bucket    string
	Key       string
	Route     string
	CreatedAt time.Time
}

// Recorder receives sessions as the handler creates them
type Recorder interface {
	Record(ctx context.Context, s Session) error
}

// Store is a session ledger
type Store interface {
	Recorder

	// Get returns one session by upload id
	Get(ctx context.Context, uploadID string) (*Session, error)

	// Forget drops a session. Forgetting an unknown id is not an error.
	Forget(ctx context.Context, uploadID string) error

	// ListOlderThan returns up to limit sessions created before cutoff, oldest first
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Session, error)
}
