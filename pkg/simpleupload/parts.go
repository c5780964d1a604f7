package simpleupload

import "fmt"

// PartRange is one byte range of a multipart upload
type PartRange struct {
	Number int
	Offset int64
	Size   int64
}

// ComputeParts splits size bytes into ceil(size/partSize) ranges covering
// [0, size) with no gap or overlap. Only the last part may be shorter.
// An empty file still gets one empty part; S3 needs at least one to complete.
func ComputeParts(size, partSize int64) ([]PartRange, error) {
	if partSize <= 0 {
		return nil, fmt.Errorf("part size must be positive, got %d", partSize)
	}
	if size < 0 {
		return nil, fmt.Errorf("size must not be negative, got %d", size)
	}

	count := (size + partSize - 1) / partSize
	if count == 0 {
		count = 1
	}
	if count > MaxParts {
		return nil, fmt.Errorf("%d bytes in %d-byte parts needs %d parts, limit is %d", size, partSize, count, MaxParts)
	}

	parts := make([]PartRange, count)
	for i := range parts {
		offset := int64(i) * partSize
		parts[i] = PartRange{
			Number: i + 1,
			Offset: offset,
			Size:   min(partSize, size-offset),
		}
	}
	return parts, nil
}
