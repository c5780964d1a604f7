package simpleupload

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the stable tag carried by every upload error
type ErrorType string

// Server-side error types
const (
	ErrorInvalidRequest  ErrorType = "invalid_request"
	ErrorTooManyFiles    ErrorType = "too_many_files"
	ErrorFileTooLarge    ErrorType = "file_too_large"
	ErrorInvalidFileType ErrorType = "invalid_file_type"
	ErrorRejected        ErrorType = "rejected"
	ErrorInvalidMetadata ErrorType = "invalid_metadata"
	ErrorInternal        ErrorType = "internal"
)

// Client-side error types
const (
	ErrorNoFiles  ErrorType = "no_files"
	ErrorS3Upload ErrorType = "s3_upload"
	ErrorAborted  ErrorType = "aborted"
	ErrorUnknown  ErrorType = "unknown"
)

// User-facing messages
const (
	msgMethodNotAllowed   = "Method not allowed."
	msgInvalidRequest     = "Invalid file upload request."
	msgRouteNotFound      = "Upload route not found."
	msgMultipleNotAllowed = "Multiple files are not allowed."
	msgTooManyFiles       = "Too many files."
	msgExceedsS3Limit     = "One or more files exceed the S3 limit of 5GB. Use multipart upload for larger files."
	msgTooManyParts       = "One or more files need more parts than S3 allows. Use a larger part size."
	msgFileTooLarge       = "One or more files are too large."
	msgInvalidFileType    = "One or more files have an invalid file type."
	msgInvalidMetadata    = "Invalid client metadata."
	msgRejected           = "Upload rejected."
	msgInternal           = "Internal server error."
)

// UploadError is a request-level or file-level upload failure. Message may
// be empty when no meaningful text exists (raw network failures).
type UploadError struct {
	Type    ErrorType
	Message string
	Status  int
	Err     error
}

func (e *UploadError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	default:
		return string(e.Type)
	}
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewUploadError creates an UploadError with the status implied by its type
func NewUploadError(t ErrorType, message string) *UploadError {
	return &UploadError{Type: t, Message: message, Status: StatusFor(t)}
}

// StatusFor maps a server-side error type to its HTTP status
func StatusFor(t ErrorType) int {
	switch t {
	case ErrorInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// TypeOf returns the ErrorType of err, or ErrorUnknown
func TypeOf(err error) ErrorType {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Type
	}
	return ErrorUnknown
}

// IsType reports whether err is an UploadError of type t
func IsType(err error, t ErrorType) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Type == t
}

// RejectError is returned by hooks to refuse an upload. Its message is shown to the client.
type RejectError struct {
	Message string
}

func (e *RejectError) Error() string {
	if e.Message == "" {
		return "upload rejected"
	}
	return "upload rejected: " + e.Message
}

// RejectUpload refuses the whole request with a client-visible message
func RejectUpload(message string) error {
	return &RejectError{Message: message}
}

// ErrorDetail is the wire shape of an error
type ErrorDetail struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message,omitempty"`
}

// ErrorBody wraps ErrorDetail as {"error": {...}}
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}
