package simpleupload

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UploadMethod selects how single-request uploads reach storage
type UploadMethod string

const (
	MethodPut  UploadMethod = "PUT"
	MethodPost UploadMethod = "POST"
)

// Route defaults
const (
	DefaultMaxFileSize           int64 = 5 * 1024 * 1024
	DefaultMaxFiles                    = 3
	DefaultPartSize              int64 = 50 * 1024 * 1024
	DefaultSignedURLExpiresIn          = 120 * time.Second
	DefaultPartURLExpiresIn            = 1500 * time.Second
	DefaultCompleteURLExpiresIn        = 1800 * time.Second
)

var (
	// ErrInvalidRoute indicates a route declaration that can never serve a request
	ErrInvalidRoute = errors.New("invalid route")
)

// MultipartConfig enables multipart sessions for a route. Zero fields take defaults.
type MultipartConfig struct {
	PartSize             int64
	PartURLExpiresIn     time.Duration
	CompleteURLExpiresIn time.Duration
}

// Route is a named upload policy. It is immutable once built.
type Route struct {
	name               string
	maxFileSize        int64
	fileTypes          []string
	multipleFiles      bool
	maxFiles           int
	multipart          *MultipartConfig
	method             UploadMethod
	signedURLExpiresIn time.Duration
	metadataValidator  MetadataValidator
	beforeUpload       beforeUploadFunc
	afterSignedURL     afterSignedURLFunc
}

// RouteOption configures a Route
type RouteOption func(*routeBuilder)

type routeBuilder struct {
	route Route

	before       BeforeUploadFunc
	singleBefore SingleBeforeUploadFunc
	after        AfterSignedURLFunc
	singleAfter  SingleAfterSignedURLFunc
}

// WithMaxFileSize sets the per-file size limit in bytes
func WithMaxFileSize(size int64) RouteOption {
	return func(b *routeBuilder) {
		b.route.maxFileSize = size
	}
}

// WithFileTypes restricts MIME types. Entries are exact ("image/png") or
// wildcard ("image/*"). No entries allows every type.
func WithFileTypes(types ...string) RouteOption {
	return func(b *routeBuilder) {
		b.route.fileTypes = append(b.route.fileTypes, types...)
	}
}

// WithMultipleFiles declares a multi-file route accepting up to maxFiles files.
// maxFiles <= 0 means DefaultMaxFiles.
func WithMultipleFiles(maxFiles int) RouteOption {
	return func(b *routeBuilder) {
		b.route.multipleFiles = true
		b.route.maxFiles = maxFiles
	}
}

// WithMultipart switches the route to multipart sessions
func WithMultipart(cfg MultipartConfig) RouteOption {
	return func(b *routeBuilder) {
		b.route.multipart = &cfg
	}
}

// WithUploadMethod selects signed PUT (default) or POST form uploads
func WithUploadMethod(m UploadMethod) RouteOption {
	return func(b *routeBuilder) {
		b.route.method = m
	}
}

// WithSignedURLExpiresIn sets the lifetime of single-request signatures
func WithSignedURLExpiresIn(d time.Duration) RouteOption {
	return func(b *routeBuilder) {
		b.route.signedURLExpiresIn = d
	}
}

// WithMetadataValidator validates client metadata before any hook runs
func WithMetadataValidator(v MetadataValidator) RouteOption {
	return func(b *routeBuilder) {
		b.route.metadataValidator = v
	}
}

// WithBeforeUpload sets the before-upload hook of a multi-file route
func WithBeforeUpload(fn BeforeUploadFunc) RouteOption {
	return func(b *routeBuilder) {
		b.before = fn
	}
}

// WithSingleBeforeUpload sets the before-upload hook of a single-file route
func WithSingleBeforeUpload(fn SingleBeforeUploadFunc) RouteOption {
	return func(b *routeBuilder) {
		b.singleBefore = fn
	}
}

// WithAfterSignedURL sets the after-signed-URL hook of a multi-file route
func WithAfterSignedURL(fn AfterSignedURLFunc) RouteOption {
	return func(b *routeBuilder) {
		b.after = fn
	}
}

// WithSingleAfterSignedURL sets the after-signed-URL hook of a single-file route
func WithSingleAfterSignedURL(fn SingleAfterSignedURLFunc) RouteOption {
	return func(b *routeBuilder) {
		b.singleAfter = fn
	}
}

// NewRoute declares a route. Hooks must match the route's single/multi-file shape.
//
// Example:
//
//	images, err := simpleupload.NewRoute("images",
//	    simpleupload.WithFileTypes("image/*"),
//	    simpleupload.WithMultipleFiles(4),
//	)
func NewRoute(name string, opts ...RouteOption) (*Route, error) {
	b := &routeBuilder{
		route: Route{
			name:               name,
			maxFileSize:        DefaultMaxFileSize,
			maxFiles:           1,
			method:             MethodPut,
			signedURLExpiresIn: DefaultSignedURLExpiresIn,
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	r := b.route
	if strings.TrimSpace(r.name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRoute)
	}
	if r.maxFileSize <= 0 {
		return nil, fmt.Errorf("%w %q: max file size must be positive", ErrInvalidRoute, name)
	}
	if r.method != MethodPut && r.method != MethodPost {
		return nil, fmt.Errorf("%w %q: unsupported upload method %q", ErrInvalidRoute, name, r.method)
	}
	if r.signedURLExpiresIn <= 0 {
		return nil, fmt.Errorf("%w %q: signed URL lifetime must be positive", ErrInvalidRoute, name)
	}
	if r.multipleFiles && r.maxFiles <= 0 {
		r.maxFiles = DefaultMaxFiles
	}
	if r.multipart != nil {
		mp := *r.multipart
		if mp.PartSize <= 0 {
			mp.PartSize = DefaultPartSize
		}
		if mp.PartURLExpiresIn <= 0 {
			mp.PartURLExpiresIn = DefaultPartURLExpiresIn
		}
		if mp.CompleteURLExpiresIn <= 0 {
			mp.CompleteURLExpiresIn = DefaultCompleteURLExpiresIn
		}
		r.multipart = &mp
	}
	for _, t := range r.fileTypes {
		if !strings.Contains(t, "/") {
			return nil, fmt.Errorf("%w %q: malformed file type %q", ErrInvalidRoute, name, t)
		}
	}

	if r.multipleFiles {
		if b.singleBefore != nil || b.singleAfter != nil {
			return nil, fmt.Errorf("%w %q: single-file hooks on a multi-file route", ErrInvalidRoute, name)
		}
		if b.before != nil {
			r.beforeUpload = normalizeBeforeUpload(b.before)
		}
		if b.after != nil {
			r.afterSignedURL = normalizeAfterSignedURL(b.after)
		}
	} else {
		if b.before != nil || b.after != nil {
			return nil, fmt.Errorf("%w %q: multi-file hooks on a single-file route", ErrInvalidRoute, name)
		}
		if b.singleBefore != nil {
			r.beforeUpload = normalizeSingleBeforeUpload(b.singleBefore)
		}
		if b.singleAfter != nil {
			r.afterSignedURL = normalizeSingleAfterSignedURL(b.singleAfter)
		}
	}

	return &r, nil
}

// Name returns the route name clients select it by
func (r *Route) Name() string { return r.name }

// MaxFileSize returns the per-file byte limit
func (r *Route) MaxFileSize() int64 { return r.maxFileSize }

// MaxFiles returns the file count limit (1 for single-file routes)
func (r *Route) MaxFiles() int { return r.maxFiles }

// MultipleFiles reports whether the route was declared multi-file
func (r *Route) MultipleFiles() bool { return r.multipleFiles }

// Multipart returns the multipart settings, or nil for single-request routes
func (r *Route) Multipart() *MultipartConfig {
	if r.multipart == nil {
		return nil
	}
	mp := *r.multipart
	return &mp
}

// AcceptsType reports whether a MIME type passes the allow-list
func (r *Route) AcceptsType(mime string) bool {
	return MatchFileType(r.fileTypes, mime)
}

// MatchFileType matches a MIME type against exact and "type/*" patterns.
// An empty allow-list accepts everything.
func MatchFileType(allowed []string, mime string) bool {
	if len(allowed) == 0 {
		return true
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "*/*" || pattern == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(mime, prefix+"/") {
				return true
			}
			continue
		}
		if pattern == mime {
			return true
		}
	}
	return false
}
