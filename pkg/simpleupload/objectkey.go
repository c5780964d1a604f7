package simpleupload

import (
	"strings"

	"github.com/google/uuid"
)

// KeyGenerator produces the default object key for a file
type KeyGenerator func(file FileDescriptor) string

// DefaultKey returns "<uuid>-<slugified name>"
func DefaultKey(file FileDescriptor) string {
	return uuid.NewString() + "-" + Slugify(file.Name)
}

// Slugify lowercases a filename and replaces anything outside [a-z0-9._-]
// with single dashes. The extension survives.
func Slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	pending := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
		case r == '.':
			b.WriteRune(r)
			pending = false
		default:
			pending = true
		}
	}

	slug := strings.Trim(b.String(), "-.")
	if slug == "" {
		return "file"
	}
	return slug
}
