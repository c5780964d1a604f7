package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// UploadHandler mounts a simpleupload.Handler on net/http
type UploadHandler struct {
	handler *simpleupload.Handler
	logger  *slog.Logger
}

// NewUploadHandler wraps h. A nil logger means slog.Default().
func NewUploadHandler(h *simpleupload.Handler, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{handler: h, logger: logger}
}

// NewHTTPHandler returns the upload endpoint as an http.Handler
func NewHTTPHandler(h *simpleupload.Handler) http.Handler {
	return NewUploadHandler(h, nil).Routes()
}

// Routes returns the router for the upload endpoint. Every method reaches the
// core handler so non-POST requests get its JSON 405.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.HandleFunc("/", h.ServeHTTP)
	return r
}

// ServeHTTP translates the request, runs the core handler and writes its response
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.handler.Handle(r.Context(), &simpleupload.Request{
		Method: r.Method,
		Header: r.Header,
		Body:   r.Body,
	})

	for k, v := range res.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(res.Status)
	if _, err := w.Write(res.Body); err != nil {
		h.logger.Warn("failed to write upload response", "status", res.Status, "error", err)
	}
}

// WriteError writes an adapter-level failure in the upload error shape
func WriteError(w http.ResponseWriter, r *http.Request, status int, errType simpleupload.ErrorType, message string) {
	render.Status(r, status)
	render.JSON(w, r, simpleupload.ErrorBody{Error: simpleupload.ErrorDetail{Type: errType, Message: message}})
}

// Health reports liveness
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
