package simpleupload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

// Request is the framework-neutral view of an upload request
type Request struct {
	Method string
	Header http.Header
	Body   io.Reader
}

// Response is the framework-neutral reply. Body is always JSON.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Handler validates upload requests against routes and mints signed
// authorizations. It holds no per-request state and is safe for concurrent use.
type Handler struct {
	client      *storage.Client
	signer      *signer.Signer
	bucket      string
	routes      map[string]*Route
	creator     storage.MultipartCreator
	recorder    sessions.Recorder
	logger      *slog.Logger
	now         func() time.Time
	keyGen      KeyGenerator
	maxBodySize int64
}

// New creates a Handler serving routes out of bucket
func New(client *storage.Client, bucket string, routes []*Route, opts ...Option) (*Handler, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	h := &Handler{
		client:      client,
		bucket:      bucket,
		routes:      make(map[string]*Route, len(routes)),
		logger:      slog.Default(),
		keyGen:      DefaultKey,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}

	var err error
	if h.now != nil {
		h.signer, err = client.Signer(signer.WithClock(h.now))
	} else {
		h.now = time.Now
		h.signer, err = client.Signer()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	for _, r := range routes {
		if r == nil {
			return nil, fmt.Errorf("%w: nil route", ErrInvalidRoute)
		}
		if _, dup := h.routes[r.name]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", ErrInvalidRoute, r.name)
		}
		if r.multipart != nil && h.creator == nil {
			return nil, fmt.Errorf("%w %q: multipart routes need WithMultipartCreator", ErrInvalidRoute, r.name)
		}
		h.routes[r.name] = r
	}

	return h, nil
}

// Route looks up a route by name
func (h *Handler) Route(name string) (*Route, bool) {
	r, ok := h.routes[name]
	return r, ok
}

// Handle runs one upload request through validation, hooks and signing
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	if req == nil || req.Method != http.MethodPost {
		res := errorResponse(&UploadError{Type: ErrorInvalidRequest, Message: msgMethodNotAllowed, Status: http.StatusMethodNotAllowed})
		res.Header.Set("Allow", http.MethodPost)
		return res
	}

	out, uerr := h.process(withRequestHeader(ctx, req.Header), req.Body)
	if uerr != nil {
		return errorResponse(uerr)
	}

	body, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("failed to encode upload response", "error", err)
		return errorResponse(internalError(err))
	}
	return &Response{Status: http.StatusOK, Header: jsonHeader(), Body: body}
}

func (h *Handler) process(ctx context.Context, body io.Reader) (*UploadResponse, *UploadError) {
	upload, err := h.decode(body)
	if err != nil {
		h.logger.Debug("invalid upload request", "error", err)
		return nil, NewUploadError(ErrorInvalidRequest, msgInvalidRequest)
	}

	route, ok := h.routes[upload.Route]
	if !ok {
		return nil, &UploadError{Type: ErrorInvalidRequest, Message: msgRouteNotFound, Status: http.StatusNotFound}
	}

	if uerr := route.check(upload.Files); uerr != nil {
		return nil, uerr
	}

	clientMeta, err := route.clientMetadata(upload.Metadata)
	if err != nil {
		h.logger.Debug("invalid client metadata", "route", route.name, "error", err)
		return nil, NewUploadError(ErrorInvalidMetadata, msgInvalidMetadata)
	}

	bucket := h.bucket
	var (
		genInfo  ObjectInfoFunc
		hookMeta any
	)
	if route.beforeUpload != nil {
		res, err := route.beforeUpload(ctx, upload.Files, clientMeta)
		if err != nil {
			return nil, h.hookFailure(route, "before_upload", err)
		}
		if res != nil {
			if res.Bucket != "" {
				bucket = res.Bucket
			}
			genInfo = res.ObjectInfo
			hookMeta = res.Metadata
		}
	}

	infos, err := h.objectInfos(ctx, upload.Files, genInfo)
	if err != nil {
		return nil, h.hookFailure(route, "object_info", err)
	}

	out := &UploadResponse{}
	if route.multipart != nil {
		files, err := h.authorizeMultipart(ctx, route, bucket, infos)
		if err != nil {
			h.logger.Error("failed to authorize multipart upload", "route", route.name, "bucket", bucket, "error", err)
			return nil, internalError(err)
		}
		out.Multipart = &MultipartResult{Files: files, PartSize: route.multipart.PartSize}
	} else {
		files, err := h.authorizeSingle(route, bucket, infos)
		if err != nil {
			h.logger.Error("failed to sign upload", "route", route.name, "bucket", bucket, "error", err)
			return nil, internalError(err)
		}
		out.Files = files
	}

	var meta any = map[string]any{}
	if route.afterSignedURL != nil {
		m, err := route.afterSignedURL(ctx, infos, hookMeta, clientMeta)
		if err != nil {
			if out.Multipart != nil {
				h.discardSessions(ctx, bucket, out.Multipart.Files)
			}
			return nil, h.hookFailure(route, "after_signed_url", err)
		}
		if m != nil {
			meta = m
		}
	}
	out.Metadata, err = json.Marshal(meta)
	if err != nil {
		h.logger.Error("response metadata is not JSON-serializable", "route", route.name, "error", err)
		return nil, internalError(err)
	}

	return out, nil
}

func (h *Handler) decode(body io.Reader) (*UploadRequest, error) {
	if body == nil {
		return nil, errors.New("empty body")
	}
	data, err := io.ReadAll(io.LimitReader(body, h.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes", h.maxBodySize)
	}

	var upload UploadRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&upload); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after request body")
	}

	if strings.TrimSpace(upload.Route) == "" {
		return nil, errors.New("route is required")
	}
	if len(upload.Files) == 0 {
		return nil, errors.New("files must not be empty")
	}
	for i, f := range upload.Files {
		if f.Name == "" || f.Type == "" {
			return nil, fmt.Errorf("file %d: name and type are required", i)
		}
		if f.Size < 0 {
			return nil, fmt.Errorf("file %d: negative size", i)
		}
	}
	return &upload, nil
}

// check enforces count, size and type limits on every file before anything is signed
func (r *Route) check(files []FileDescriptor) *UploadError {
	if !r.multipleFiles && len(files) > 1 {
		return NewUploadError(ErrorTooManyFiles, msgMultipleNotAllowed)
	}
	if len(files) > r.maxFiles {
		return NewUploadError(ErrorTooManyFiles, msgTooManyFiles)
	}

	if r.multipart == nil {
		for _, f := range files {
			if f.Size > MaxSinglePartSize {
				return NewUploadError(ErrorFileTooLarge, msgExceedsS3Limit)
			}
		}
	}
	for _, f := range files {
		if f.Size > r.maxFileSize {
			return NewUploadError(ErrorFileTooLarge, msgFileTooLarge)
		}
	}
	if r.multipart != nil {
		for _, f := range files {
			if _, err := ComputeParts(f.Size, r.multipart.PartSize); err != nil {
				return NewUploadError(ErrorFileTooLarge, msgTooManyParts)
			}
		}
	}
	for _, f := range files {
		if !r.AcceptsType(f.Type) {
			return NewUploadError(ErrorInvalidFileType, msgInvalidFileType)
		}
	}
	return nil
}

func (r *Route) clientMetadata(raw json.RawMessage) (any, error) {
	if r.metadataValidator != nil {
		return r.metadataValidator.ValidateMetadata(raw)
	}
	return decodeClientMetadata(raw)
}

// objectInfos resolves keys and metadata for every file concurrently
func (h *Handler) objectInfos(ctx context.Context, files []FileDescriptor, gen ObjectInfoFunc) ([]FileInfo, error) {
	infos := make([]FileInfo, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = &hookPanic{value: rec, stack: debug.Stack()}
				}
			}()

			var info ObjectInfo
			if gen != nil {
				custom, err := gen(gctx, f)
				if err != nil {
					return err
				}
				if custom != nil {
					info = *custom
				}
			}
			if info.Key == "" {
				info.Key = h.keyGen(f)
			}
			if info.Metadata == nil {
				info.Metadata = map[string]string{}
			}
			infos[i] = FileInfo{FileDescriptor: f, ObjectInfo: info}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// hookPanic is a panic recovered from a hook running off the request goroutine
type hookPanic struct {
	value any
	stack []byte
}

func (p *hookPanic) Error() string {
	return fmt.Sprintf("hook panicked: %v", p.value)
}

func (h *Handler) hookFailure(route *Route, hook string, err error) *UploadError {
	var rej *RejectError
	if errors.As(err, &rej) {
		msg := rej.Message
		if msg == "" {
			msg = msgRejected
		}
		return NewUploadError(ErrorRejected, msg)
	}

	var hp *hookPanic
	if errors.As(err, &hp) {
		h.logger.Error("upload hook panic", "route", route.name, "hook", hook, "panic", hp.value, "stack", string(hp.stack))
		return internalError(err)
	}

	h.logger.Error("upload hook failed", "route", route.name, "hook", hook, "error", err)
	return internalError(err)
}

func internalError(err error) *UploadError {
	return &UploadError{Type: ErrorInternal, Message: msgInternal, Status: http.StatusInternalServerError, Err: err}
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": {"application/json"}}
}

func errorResponse(uerr *UploadError) *Response {
	body, _ := json.Marshal(ErrorBody{Error: ErrorDetail{Type: uerr.Type, Message: uerr.Message}})
	status := uerr.Status
	if status == 0 {
		status = StatusFor(uerr.Type)
	}
	return &Response{Status: status, Header: jsonHeader(), Body: body}
}
