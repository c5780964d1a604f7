package simpleupload

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

// DefaultMaxBodySize caps the JSON request body
const DefaultMaxBodySize int64 = 1 << 20

// Option is a functional option for configuring a Handler
type Option func(*Handler)

// WithMultipartCreator sets the storage collaborator that opens multipart
// sessions. Required when any route enables multipart.
func WithMultipartCreator(c storage.MultipartCreator) Option {
	return func(h *Handler) {
		h.creator = c
	}
}

// WithSessionRecorder records every multipart session the handler opens
func WithSessionRecorder(r sessions.Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithLogger sets the logger for hook and storage failures
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock fixes the signing time source
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithKeyGenerator replaces the default "<uuid>-<slug>" object keys
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(h *Handler) {
		h.keyGen = gen
	}
}

// WithMaxBodySize caps the size of the JSON request body
func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		h.maxBodySize = n
	}
}
