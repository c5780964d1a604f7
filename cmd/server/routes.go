package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// AlbumMetadata is the client metadata accepted by the photos route
type AlbumMetadata struct {
	AlbumID string `json:"albumId"`
}

func (m *AlbumMetadata) Validate() error {
	if m.AlbumID == "" {
		return errors.New("albumId is required")
	}
	return nil
}

// uploadRoutes declares the routes served by this binary. Multipart routes
// are only served when a multipart backend is configured.
func uploadRoutes(multipart bool) ([]*simpleupload.Route, error) {
	avatar, err := simpleupload.NewRoute("avatar",
		simpleupload.WithFileTypes("image/*"),
		simpleupload.WithMaxFileSize(2*1024*1024),
		simpleupload.WithSingleBeforeUpload(func(ctx context.Context, req simpleupload.SingleBeforeUploadRequest) (*simpleupload.SingleBeforeUploadResult, error) {
			return &simpleupload.SingleBeforeUploadResult{
				ObjectInfo: &simpleupload.ObjectInfo{
					Key:          "avatars/" + simpleupload.DefaultKey(req.File),
					CacheControl: "public, max-age=86400",
				},
			}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("avatar route: %w", err)
	}

	photos, err := simpleupload.NewRoute("photos",
		simpleupload.WithFileTypes("image/jpeg", "image/png", "image/webp"),
		simpleupload.WithMaxFileSize(20*1024*1024),
		simpleupload.WithMultipleFiles(10),
		simpleupload.WithMetadataValidator(simpleupload.StructValidator[AlbumMetadata]()),
		simpleupload.WithBeforeUpload(func(ctx context.Context, req simpleupload.BeforeUploadRequest) (*simpleupload.BeforeUploadResult, error) {
			album := req.ClientMetadata.(AlbumMetadata)
			return &simpleupload.BeforeUploadResult{
				ObjectInfo: func(ctx context.Context, file simpleupload.FileDescriptor) (*simpleupload.ObjectInfo, error) {
					return &simpleupload.ObjectInfo{
						Key:      "albums/" + album.AlbumID + "/" + simpleupload.DefaultKey(file),
						Metadata: map[string]string{"album-id": album.AlbumID},
					}, nil
				},
			}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("photos route: %w", err)
	}

	documents, err := simpleupload.NewRoute("documents",
		simpleupload.WithFileTypes("application/pdf", "text/plain", "text/csv"),
		simpleupload.WithMaxFileSize(10*1024*1024),
		simpleupload.WithMultipleFiles(5),
		simpleupload.WithUploadMethod(simpleupload.MethodPost))
	if err != nil {
		return nil, fmt.Errorf("documents route: %w", err)
	}

	routes := []*simpleupload.Route{avatar, photos, documents}
	if !multipart {
		return routes, nil
	}

	videos, err := simpleupload.NewRoute("videos",
		simpleupload.WithFileTypes("video/*"),
		simpleupload.WithMaxFileSize(20*1024*1024*1024),
		simpleupload.WithMultipleFiles(3),
		simpleupload.WithMultipart(simpleupload.MultipartConfig{PartSize: 64 * 1024 * 1024}))
	if err != nil {
		return nil, fmt.Errorf("videos route: %w", err)
	}

	return append(routes, videos), nil
}
