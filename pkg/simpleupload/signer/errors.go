package signer

import "errors"

// Signing errors. These indicate programming or configuration mistakes and
// are not meant to be converted into user-facing responses.
var (
	// ErrNoCredentials is returned when the signer has no access key or secret
	ErrNoCredentials = errors.New("signer: missing credentials")

	// ErrNoRegion is returned when the signer has no region configured
	ErrNoRegion = errors.New("signer: missing region")

	// ErrInvalidExpiry is returned for non-positive expirations or ones beyond the 7 day SigV4 limit
	ErrInvalidExpiry = errors.New("signer: invalid expiry")
)

// Verification errors
var (
	// ErrMissingSignature is returned when X-Amz-Signature is absent
	ErrMissingSignature = errors.New("signer: missing signature parameter")

	// ErrMalformedURL is returned when a presigned URL lacks required SigV4 parameters
	ErrMalformedURL = errors.New("signer: malformed presigned URL")

	// ErrExpired is returned when the presigned URL has expired
	ErrExpired = errors.New("signer: URL has expired")

	// ErrInvalidSignature is returned when the signature does not match the request
	ErrInvalidSignature = errors.New("signer: invalid signature")
)

// IsAuthError returns true if the error is a signature verification error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrMalformedURL) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrInvalidSignature)
}
