package simpleupload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MetadataValidator checks caller-supplied metadata and returns the value
// handed to hooks as ClientMetadata.
type MetadataValidator interface {
	ValidateMetadata(raw json.RawMessage) (any, error)
}

// MetadataValidatorFunc adapts a function to MetadataValidator
type MetadataValidatorFunc func(raw json.RawMessage) (any, error)

func (f MetadataValidatorFunc) ValidateMetadata(raw json.RawMessage) (any, error) {
	return f(raw)
}

type validatable interface {
	Validate() error
}

type structValidator[T any] struct{}

// StructValidator decodes metadata into T, rejecting unknown fields, and
// calls Validate when T (or *T) implements it. Hooks receive a T.
//
// Example:
//
//	type AlbumMeta struct {
//	    AlbumID string `json:"albumId"`
//	}
//
//	func (m AlbumMeta) Validate() error { ... }
//
//	simpleupload.WithMetadataValidator(simpleupload.StructValidator[AlbumMeta]())
func StructValidator[T any]() MetadataValidator {
	return structValidator[T]{}
}

func (structValidator[T]) ValidateMetadata(raw json.RawMessage) (any, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return nil, fmt.Errorf("decode metadata: trailing data")
	}

	if val, ok := any(&v).(validatable); ok {
		if err := val.Validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// decodeClientMetadata is used when a route declares no validator
func decodeClientMetadata(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
