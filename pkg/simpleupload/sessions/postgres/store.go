package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS upload_sessions (
	upload_id  TEXT PRIMARY KEY,
	bucket     TEXT NOT NULL,
	object_key TEXT NOT NULL,
	route      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS upload_sessions_created_at_idx ON upload_sessions (created_at);`

// Store is a sessions.Store backed by PostgreSQL
type Store struct {
	db DBTX
}

var _ sessions.Store = (*Store)(nil)

// New creates a Store over a connection, pool or transaction
func New(db DBTX) *Store {
	return &Store{db: db}
}

// NewWithPool connects a pool and returns a Store using it
func NewWithPool(ctx context.Context, databaseURL string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect sessions database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping sessions database: %w", err)
	}
	return New(pool), pool, nil
}

// EnsureSchema creates the upload_sessions table when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, sess sessions.Session) error {
	query := `
		INSERT INTO upload_sessions (upload_id, bucket, object_key, route, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (upload_id) DO NOTHING`

	_, err := s.db.Exec(ctx, query, sess.UploadID, sess.Bucket, sess.Key, sess.Route, sess.CreatedAt.UTC())
	if err != nil {
		return handlePostgresError("record session", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, uploadID string) (*sessions.Session, error) {
	query := `
		SELECT upload_id, bucket, object_key, route, created_at
		FROM upload_sessions WHERE upload_id = $1`

	var sess sessions.Session
	err := s.db.QueryRow(ctx, query, uploadID).Scan(
		&sess.UploadID, &sess.Bucket, &sess.Key, &sess.Route, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sessions.ErrSessionNotFound
		}
		return nil, handlePostgresError("get session", err)
	}
	return &sess, nil
}

func (s *Store) Forget(ctx context.Context, uploadID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM upload_sessions WHERE upload_id = $1`, uploadID)
	if err != nil {
		return handlePostgresError("forget session", err)
	}
	return nil
}

func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]sessions.Session, error) {
	query := `
		SELECT upload_id, bucket, object_key, route, created_at
		FROM upload_sessions WHERE created_at < $1
		ORDER BY created_at, upload_id
		LIMIT $2`

	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return nil, handlePostgresError("list sessions", err)
	}
	defer rows.Close()

	var out []sessions.Session
	for rows.Next() {
		var sess sessions.Session
		if err := rows.Scan(&sess.UploadID, &sess.Bucket, &sess.Key, &sess.Route, &sess.CreatedAt); err != nil {
			return nil, handlePostgresError("scan session", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list sessions", err)
	}
	return out, nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("%s: upload_sessions table does not exist - run EnsureSchema", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
