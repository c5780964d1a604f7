package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig indicates a client could not be configured
	ErrConfig = errors.New("storage: invalid configuration")

	// ErrUnknownProvider indicates FromProvider got an unsupported provider name
	ErrUnknownProvider = errors.New("storage: unknown provider")

	// ErrNoSuchUpload indicates a multipart session no longer exists (completed or aborted)
	ErrNoSuchUpload = errors.New("storage: no such multipart upload")
)

// ConfigError reports fields still missing after env fallback resolution
type ConfigError struct {
	Provider string
	Missing  []string
	Err      error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("storage: %s client is missing %s", e.Provider, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("storage: %s client: %v", e.Provider, e.Err)
}

// Is reports ErrConfig so callers can match on the category
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
