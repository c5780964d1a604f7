package simpleupload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoute_Defaults(t *testing.T) {
	r, err := NewRoute("files")
	require.NoError(t, err)
	assert.Equal(t, "files", r.Name())
	assert.Equal(t, DefaultMaxFileSize, r.MaxFileSize())
	assert.Equal(t, 1, r.MaxFiles())
	assert.False(t, r.MultipleFiles())
	assert.Nil(t, r.Multipart())
	assert.Equal(t, MethodPut, r.method)
	assert.Equal(t, 120*time.Second, r.signedURLExpiresIn)

	multi, err := NewRoute("many", WithMultipleFiles(0), WithMultipart(MultipartConfig{}))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFiles, multi.MaxFiles())
	assert.Equal(t, &MultipartConfig{
		PartSize:             50 * 1024 * 1024,
		PartURLExpiresIn:     1500 * time.Second,
		CompleteURLExpiresIn: 1800 * time.Second,
	}, multi.Multipart())
}

func TestNewRoute_Invalid(t *testing.T) {
	single := func(ctx context.Context, req SingleBeforeUploadRequest) (*SingleBeforeUploadResult, error) { return nil, nil }
	multi := func(ctx context.Context, req BeforeUploadRequest) (*BeforeUploadResult, error) { return nil, nil }
	after := func(ctx context.Context, req AfterSignedURLRequest) (*AfterSignedURLResult, error) { return nil, nil }

	tests := []struct {
		name  string
		route string
		opts  []RouteOption
	}{
		{"empty name", " ", nil},
		{"zero max size", "r", []RouteOption{WithMaxFileSize(0)}},
		{"bad method", "r", []RouteOption{WithUploadMethod("PATCH")}},
		{"bad expiry", "r", []RouteOption{WithSignedURLExpiresIn(-time.Second)}},
		{"malformed type", "r", []RouteOption{WithFileTypes("image")}},
		{"single hook on multi route", "r", []RouteOption{WithMultipleFiles(2), WithSingleBeforeUpload(single)}},
		{"multi hook on single route", "r", []RouteOption{WithBeforeUpload(multi)}},
		{"multi after hook on single route", "r", []RouteOption{WithAfterSignedURL(after)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoute(tt.route, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidRoute)
		})
	}
}

func TestMatchFileType(t *testing.T) {
	tests := []struct {
		allowed []string
		mime    string
		want    bool
	}{
		{nil, "application/x-anything", true},
		{[]string{"image/*"}, "image/png", true},
		{[]string{"image/*"}, "image/svg+xml", true},
		{[]string{"image/*"}, "IMAGE/JPEG", true},
		{[]string{"image/*"}, "video/mp4", false},
		{[]string{"image/*"}, "imagex/png", false},
		{[]string{"image/png"}, "image/png", true},
		{[]string{"image/png"}, "image/png; charset=binary", true},
		{[]string{"image/png"}, "image/jpeg", false},
		{[]string{"text/plain", "application/pdf"}, "application/pdf", true},
		{[]string{"*/*"}, "font/woff2", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchFileType(tt.allowed, tt.mime), "%v %s", tt.allowed, tt.mime)
	}
}

func TestComputeParts(t *testing.T) {
	parts, err := ComputeParts(12_000_000, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, []PartRange{
		{Number: 1, Offset: 0, Size: 5_000_000},
		{Number: 2, Offset: 5_000_000, Size: 5_000_000},
		{Number: 3, Offset: 10_000_000, Size: 2_000_000},
	}, parts)

	empty, err := ComputeParts(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []PartRange{{Number: 1, Offset: 0, Size: 0}}, empty)

	_, err = ComputeParts(10, 0)
	assert.Error(t, err)
	_, err = ComputeParts(MaxParts*10+1, 10)
	assert.Error(t, err)
}

func TestComputeParts_Covers(t *testing.T) {
	for _, size := range []int64{1, 7, 99, 100, 101, 1000, 123457} {
		for _, partSize := range []int64{1, 3, 10, 100, 4096} {
			if (size+partSize-1)/partSize > MaxParts {
				continue
			}
			parts, err := ComputeParts(size, partSize)
			require.NoError(t, err)

			var next int64
			for i, p := range parts {
				assert.Equal(t, i+1, p.Number)
				assert.Equal(t, next, p.Offset, "gap or overlap at part %d", p.Number)
				if i < len(parts)-1 {
					assert.Equal(t, partSize, p.Size)
				} else {
					assert.LessOrEqual(t, p.Size, partSize)
					assert.Positive(t, p.Size)
				}
				next += p.Size
			}
			assert.Equal(t, size, next)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"a.jpg":             "a.jpg",
		"My Photo (1).JPG":  "my-photo-1.jpg",
		"../../etc/passwd":  "etc-passwd",
		"résumé final.pdf":  "r-sum-final.pdf",
		"   ":               "file",
		"snake_case-name.x": "snake_case-name.x",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

type pointerMeta struct {
	Tag string `json:"tag"`
}

func (m *pointerMeta) Validate() error {
	if m.Tag == "bad" {
		return errors.New("bad tag")
	}
	return nil
}

func TestStructValidator(t *testing.T) {
	v := StructValidator[pointerMeta]()

	got, err := v.ValidateMetadata(json.RawMessage(`{"tag":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, pointerMeta{Tag: "ok"}, got)

	_, err = v.ValidateMetadata(json.RawMessage(`{"tag":"bad"}`))
	assert.Error(t, err)
	_, err = v.ValidateMetadata(json.RawMessage(`{"tag":"ok","other":true}`))
	assert.Error(t, err)
	_, err = v.ValidateMetadata(json.RawMessage(`{"tag":"ok"} {}`))
	assert.Error(t, err)

	fn := MetadataValidatorFunc(func(raw json.RawMessage) (any, error) { return string(raw), nil })
	got, err = fn.ValidateMetadata(json.RawMessage(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, `"x"`, got)
}

func TestUploadError(t *testing.T) {
	err := NewUploadError(ErrorFileTooLarge, "too big")
	assert.Equal(t, 400, err.Status)
	assert.True(t, IsType(err, ErrorFileTooLarge))
	assert.Equal(t, ErrorFileTooLarge, TypeOf(err))
	assert.Equal(t, ErrorUnknown, TypeOf(errors.New("boom")))
	assert.Equal(t, "file_too_large: too big", err.Error())
}
