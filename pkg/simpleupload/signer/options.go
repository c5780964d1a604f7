package signer

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithCredentials sets the access key pair used for signing
func WithCredentials(creds Credentials) Option {
	return func(s *Signer) {
		s.creds = creds
	}
}

// WithRegion sets the region bound into the credential scope
func WithRegion(region string) Option {
	return func(s *Signer) {
		s.region = region
	}
}

// WithService overrides the service name bound into the credential scope.
// Default is "s3".
func WithService(service string) Option {
	return func(s *Signer) {
		s.service = service
	}
}

// WithClock sets the time source used for request timestamps and expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
