package simpleupload

import (
	"encoding/json"

	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

// S3 single-request object ceiling
const MaxSinglePartSize int64 = 5 * 1024 * 1024 * 1024

// S3 caps a multipart session at this many parts
const MaxParts = 10000

// FileDescriptor describes a file the client wants to upload.
// ID is an optional client correlation id echoed back on the response.
type FileDescriptor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// ObjectInfo describes where and how a file is stored. Metadata is echoed
// to the client and must never carry secrets.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Metadata     map[string]string `json:"metadata"`
	ACL          string            `json:"acl,omitempty"`
	StorageClass string            `json:"storageClass,omitempty"`
	CacheControl string            `json:"cacheControl,omitempty"`
}

// UploadRequest is the JSON body POSTed by the client
type UploadRequest struct {
	Route    string           `json:"route"`
	Files    []FileDescriptor `json:"files"`
	Metadata json.RawMessage  `json:"metadata,omitempty"`
}

// FileInfo is a file together with its resolved object info
type FileInfo struct {
	FileDescriptor
	ObjectInfo ObjectInfo `json:"objectInfo"`
}

// SignedFile authorizes one single-request upload, by PUT or POST form
type SignedFile struct {
	SignedURL string           `json:"signedUrl,omitempty"`
	PostForm  *signer.PostForm `json:"postForm,omitempty"`
	File      FileInfo         `json:"file"`
}

// Part is one signed byte range of a multipart upload
type Part struct {
	SignedURL  string `json:"signedUrl"`
	PartNumber int    `json:"partNumber"`
	Size       int64  `json:"size"`
}

// MultipartFile authorizes a full multipart session for one file
type MultipartFile struct {
	File              FileInfo `json:"file"`
	Parts             []Part   `json:"parts"`
	UploadID          string   `json:"uploadId"`
	CompleteSignedURL string   `json:"completeSignedUrl"`
	AbortSignedURL    string   `json:"abortSignedUrl"`
}

// MultipartResult is the multipart branch of an UploadResponse
type MultipartResult struct {
	Files    []MultipartFile `json:"files"`
	PartSize int64           `json:"partSize"`
}

// UploadResponse is the success body. Exactly one of Files or Multipart is set.
type UploadResponse struct {
	Files     []SignedFile     `json:"files,omitempty"`
	Multipart *MultipartResult `json:"multipart,omitempty"`
	Metadata  json.RawMessage  `json:"metadata"`
}
