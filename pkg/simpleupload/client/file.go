package client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// File is a local file to upload. Body is read by offset so parts and
// retries never need to buffer or rewind.
type File struct {
	ID   string
	Name string
	Type string
	Size int64
	Body io.ReaderAt
}

// NewFile describes an in-memory or already opened file
func NewFile(name, contentType string, size int64, body io.ReaderAt) File {
	return File{
		ID:   uuid.NewString(),
		Name: name,
		Type: contentType,
		Size: size,
		Body: body,
	}
}

// OpenFile opens path and sniffs its MIME type. Close the file when done.
func OpenFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectReader(io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		f.Close()
		return File{}, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}

	return NewFile(filepath.Base(path), mtype.String(), info.Size(), f), nil
}

// Close closes the body if it is closable
func (f File) Close() error {
	if c, ok := f.Body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f File) section(offset, size int64) *io.SectionReader {
	return io.NewSectionReader(f.Body, offset, size)
}
