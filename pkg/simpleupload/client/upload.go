package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

const (
	msgNoFiles = "No files provided."
	msgAborted = "Upload aborted."
)

// ErrNoAuthorization means the server response held nothing for a file
var ErrNoAuthorization = errors.New("server returned no authorization for file")

// UploadOptions configures one Upload call
type UploadOptions struct {
	// Route is the server route name
	Route string
	// Metadata is sent as the request's client metadata when non-nil
	Metadata any

	// BatchSize bounds concurrent file transfers. 0 runs all at once, 1 runs
	// files strictly in input order.
	BatchSize int
	// PartBatchSize bounds concurrent part uploads per file. 0 means all parts.
	PartBatchSize int
	// AbortOnError cancels the remaining transfers after the first file failure
	AbortOnError bool

	// BeforeUpload may replace the file list before anything is sent
	BeforeUpload func(ctx context.Context, files []File) ([]File, error)

	OnUploadBegin func(files []Snapshot)
	OnProgress    func(s Snapshot)
	OnComplete    func(res *Result)
	OnUploadFail  func(res *Result)
	OnError       func(err error)
	OnSettled     func(res *Result, err error)
}

// UploadedFile is a file that reached storage
type UploadedFile struct {
	File       File
	ObjectInfo simpleupload.ObjectInfo
}

// FailedFile is a file whose transfer failed. Err is an *simpleupload.UploadError.
type FailedFile struct {
	File File
	Err  error
}

// Result lists the outcome of every file in input order
type Result struct {
	Files    []UploadedFile
	Failed   []FailedFile
	Metadata json.RawMessage
}

// authorization is the server's answer for one file
type authorization struct {
	info      simpleupload.FileInfo
	single    *simpleupload.SignedFile
	multipart *simpleupload.MultipartFile
}

// Upload authorizes files with the server and transfers them to storage.
// Request-level failures (no files, server rejection, cancellation) are
// returned as *simpleupload.UploadError. Failures of individual files are
// collected in Result.Failed and do not fail the call.
func (c *Client) Upload(ctx context.Context, files []File, opts UploadOptions) (*Result, error) {
	events := &notifier{opts: &opts}

	res, err := c.upload(ctx, files, &opts, events)
	if err != nil {
		events.requestError(err)
	}
	events.settled(res, err)
	return res, err
}

func (c *Client) upload(ctx context.Context, files []File, opts *UploadOptions, events *notifier) (*Result, error) {
	if len(files) == 0 {
		return nil, simpleupload.NewUploadError(simpleupload.ErrorNoFiles, msgNoFiles)
	}

	if opts.BeforeUpload != nil {
		transformed, err := opts.BeforeUpload(ctx, files)
		if err != nil {
			return nil, asUploadError(ctx, err)
		}
		files = transformed
		if len(files) == 0 {
			return nil, simpleupload.NewUploadError(simpleupload.ErrorNoFiles, msgNoFiles)
		}
	}

	files = withIDs(files)

	resp, err := c.requestAuthorizations(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	auths := correlate(files, resp)

	transfers := make([]*Transfer, len(files))
	begin := make([]Snapshot, len(files))
	for i, f := range files {
		transfers[i] = newTransfer(f, events.progress)
		begin[i] = transfers[i].Snapshot()
	}
	events.begin(begin)

	c.transferAll(ctx, transfers, auths, opts)

	res := &Result{Metadata: resp.Metadata}
	for i, t := range transfers {
		snap := t.Snapshot()
		if snap.Status == StatusComplete {
			res.Files = append(res.Files, UploadedFile{File: snap.File, ObjectInfo: auths[i].info.ObjectInfo})
			continue
		}
		res.Failed = append(res.Failed, FailedFile{File: snap.File, Err: snap.Err})
	}

	if ctx.Err() != nil {
		return res, simpleupload.NewUploadError(simpleupload.ErrorAborted, msgAborted)
	}

	if len(res.Files) > 0 {
		events.complete(res)
	}
	if len(res.Failed) > 0 {
		events.uploadFail(res)
	}
	return res, nil
}

func (c *Client) requestAuthorizations(ctx context.Context, files []File, opts *UploadOptions) (*simpleupload.UploadResponse, error) {
	reqBody := simpleupload.UploadRequest{Route: opts.Route, Files: make([]simpleupload.FileDescriptor, len(files))}
	for i, f := range files {
		reqBody.Files[i] = simpleupload.FileDescriptor{ID: f.ID, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	if opts.Metadata != nil {
		raw, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, &simpleupload.UploadError{Type: simpleupload.ErrorInvalidMetadata, Message: "Client metadata is not valid JSON.", Err: err}
		}
		reqBody.Metadata = raw
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &simpleupload.UploadError{Type: simpleupload.ErrorUnknown, Err: err}
	}

	var out simpleupload.UploadResponse
	err = c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		for k, v := range c.header {
			req.Header[k] = v
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode upload response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, serverError(ctx, err)
	}
	return &out, nil
}

func (c *Client) transferAll(ctx context.Context, transfers []*Transfer, auths []authorization, opts *UploadOptions) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	if opts.BatchSize > 0 {
		g.SetLimit(opts.BatchSize)
	}

	for i, t := range transfers {
		g.Go(func() error {
			if ctx.Err() != nil {
				t.fail(simpleupload.NewUploadError(simpleupload.ErrorAborted, msgAborted))
				return nil
			}

			if err := c.transfer(ctx, t, auths[i], opts); err != nil {
				t.fail(transferError(ctx, err))
				c.logger.Warn("file upload failed", "name", t.file.Name, "error", err)
				if opts.AbortOnError {
					cancel()
				}
				return nil
			}
			t.complete()
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Client) transfer(ctx context.Context, t *Transfer, auth authorization, opts *UploadOptions) error {
	switch {
	case auth.multipart != nil:
		t.start(len(auth.multipart.Parts))
		return c.uploadMultipart(ctx, t, *auth.multipart, opts.PartBatchSize)
	case auth.single != nil && auth.single.PostForm != nil:
		t.start(0)
		return c.postObject(ctx, t, auth.single.PostForm)
	case auth.single != nil && auth.single.SignedURL != "":
		t.start(0)
		return c.putObject(ctx, t, *auth.single)
	default:
		t.start(0)
		return fmt.Errorf("%w: %s", ErrNoAuthorization, t.file.Name)
	}
}

// correlate pairs each file with its authorization, by echoed id first and
// by name, size and type otherwise. Each authorization is used once.
func correlate(files []File, resp *simpleupload.UploadResponse) []authorization {
	var pool []authorization
	if resp.Multipart != nil {
		for i := range resp.Multipart.Files {
			mf := &resp.Multipart.Files[i]
			pool = append(pool, authorization{info: mf.File, multipart: mf})
		}
	}
	for i := range resp.Files {
		sf := &resp.Files[i]
		pool = append(pool, authorization{info: sf.File, single: sf})
	}

	used := make([]bool, len(pool))
	take := func(match func(simpleupload.FileInfo) bool) (authorization, bool) {
		for i, a := range pool {
			if !used[i] && match(a.info) {
				used[i] = true
				return a, true
			}
		}
		return authorization{}, false
	}

	out := make([]authorization, len(files))
	found := make([]bool, len(files))
	for i, f := range files {
		if f.ID == "" {
			continue
		}
		out[i], found[i] = take(func(info simpleupload.FileInfo) bool { return info.ID == f.ID })
	}
	for i, f := range files {
		if found[i] {
			continue
		}
		out[i], _ = take(func(info simpleupload.FileInfo) bool {
			return info.Name == f.Name && info.Size == f.Size && info.Type == f.Type
		})
	}
	return out
}

func withIDs(files []File) []File {
	out := make([]File, len(files))
	copy(out, files)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}

// serverError turns a failed authorization request into a request-level error
// rejectionTypes are the server error types surfaced to callers as-is.
// Anything else, and every 5xx, is reported as ErrorUnknown.
var rejectionTypes = map[simpleupload.ErrorType]bool{
	simpleupload.ErrorInvalidRequest:  true,
	simpleupload.ErrorTooManyFiles:    true,
	simpleupload.ErrorFileTooLarge:    true,
	simpleupload.ErrorInvalidFileType: true,
	simpleupload.ErrorRejected:        true,
	simpleupload.ErrorInvalidMetadata: true,
}

func serverError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return simpleupload.NewUploadError(simpleupload.ErrorAborted, msgAborted)
	}

	var se *StatusError
	if errors.As(err, &se) {
		var body simpleupload.ErrorBody
		if jerr := json.Unmarshal(se.Body, &body); jerr == nil && body.Error.Type != "" {
			typ := body.Error.Type
			if se.StatusCode >= http.StatusInternalServerError || !rejectionTypes[typ] {
				typ = simpleupload.ErrorUnknown
			}
			return &simpleupload.UploadError{Type: typ, Message: body.Error.Message, Status: se.StatusCode, Err: err}
		}
		return &simpleupload.UploadError{Type: simpleupload.ErrorUnknown, Status: se.StatusCode, Err: err}
	}
	return &simpleupload.UploadError{Type: simpleupload.ErrorUnknown, Err: err}
}

// transferError classifies a failed storage transfer
func transferError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &simpleupload.UploadError{Type: simpleupload.ErrorAborted, Message: msgAborted, Err: err}
	}

	if errors.Is(err, ErrNoAuthorization) {
		return &simpleupload.UploadError{Type: simpleupload.ErrorUnknown, Err: err}
	}

	ue := &simpleupload.UploadError{Type: simpleupload.ErrorS3Upload, Err: err}
	var se *StatusError
	var s3err *S3Error
	switch {
	case errors.As(err, &s3err):
		ue.Message = s3err.Message
	case errors.As(err, &se):
		ue.Status = se.StatusCode
		if parsed, ok := parseS3Error(se.Body); ok {
			ue.Message = parsed.Message
		}
	}
	return ue
}

func asUploadError(ctx context.Context, err error) error {
	var ue *simpleupload.UploadError
	if errors.As(err, &ue) {
		return err
	}
	if ctx.Err() != nil {
		return &simpleupload.UploadError{Type: simpleupload.ErrorAborted, Message: msgAborted, Err: err}
	}
	return &simpleupload.UploadError{Type: simpleupload.ErrorUnknown, Message: err.Error(), Err: err}
}

// notifier serializes callbacks
type notifier struct {
	mu   sync.Mutex
	opts *UploadOptions
}

func (n *notifier) call(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn()
}

func (n *notifier) begin(files []Snapshot) {
	if n.opts.OnUploadBegin != nil {
		n.call(func() { n.opts.OnUploadBegin(files) })
	}
}

func (n *notifier) progress(s Snapshot) {
	if n.opts.OnProgress != nil {
		n.call(func() { n.opts.OnProgress(s) })
	}
}

func (n *notifier) complete(res *Result) {
	if n.opts.OnComplete != nil {
		n.call(func() { n.opts.OnComplete(res) })
	}
}

func (n *notifier) uploadFail(res *Result) {
	if n.opts.OnUploadFail != nil {
		n.call(func() { n.opts.OnUploadFail(res) })
	}
}

func (n *notifier) requestError(err error) {
	if n.opts.OnError != nil {
		n.call(func() { n.opts.OnError(err) })
	}
}

func (n *notifier) settled(res *Result, err error) {
	if n.opts.OnSettled != nil {
		n.call(func() { n.opts.OnSettled(res, err) })
	}
}
