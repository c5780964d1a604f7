package simpleupload

import (
	"net/http"
	"sort"

	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

// ObjectHeaders returns the headers bound into a signed PUT. The uploader
// must send exactly these, plus Content-Length.
func ObjectHeaders(contentType string, info ObjectInfo) http.Header {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	if info.CacheControl != "" {
		header.Set("Cache-Control", info.CacheControl)
	}
	if info.ACL != "" {
		header.Set("X-Amz-Acl", info.ACL)
	}
	if info.StorageClass != "" {
		header.Set("X-Amz-Storage-Class", info.StorageClass)
	}
	for k, v := range info.Metadata {
		header.Set("X-Amz-Meta-"+k, v)
	}
	return header
}

func objectFormFields(contentType string, info ObjectInfo) signer.FormFields {
	fields := signer.FormFields{{Name: "Content-Type", Value: contentType}}
	if info.CacheControl != "" {
		fields = append(fields, signer.FormField{Name: "Cache-Control", Value: info.CacheControl})
	}
	if info.ACL != "" {
		fields = append(fields, signer.FormField{Name: "acl", Value: info.ACL})
	}
	if info.StorageClass != "" {
		fields = append(fields, signer.FormField{Name: "x-amz-storage-class", Value: info.StorageClass})
	}

	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, signer.FormField{Name: "x-amz-meta-" + k, Value: info.Metadata[k]})
	}
	return fields
}
