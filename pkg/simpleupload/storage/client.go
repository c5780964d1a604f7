package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

// Client is the normalized connection shape every provider resolves to
type Client struct {
	Provider    string
	Hostname    string // host[:port], no scheme
	Region      string
	PathStyle   bool
	Secure      bool
	Credentials signer.Credentials

	signer *signer.Signer
}

// CustomParams configures a client for any S3-compatible endpoint
type CustomParams struct {
	// Hostname is the storage host, optionally with a scheme ("http://localhost:9000").
	// A scheme of http disables TLS.
	Hostname        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// PathStyle addresses buckets as https://host/bucket instead of https://bucket.host
	PathStyle bool
}

// CustomClient builds a Client for an arbitrary S3-compatible endpoint.
// All provider constructors funnel through here.
func CustomClient(p CustomParams) (*Client, error) {
	return newClient("custom", p)
}

func newClient(provider string, p CustomParams) (*Client, error) {
	var missing []string
	if p.Hostname == "" {
		missing = append(missing, "hostname")
	}
	if p.Region == "" {
		missing = append(missing, "region")
	}
	if p.AccessKeyID == "" {
		missing = append(missing, "access key id")
	}
	if p.SecretAccessKey == "" {
		missing = append(missing, "secret access key")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Provider: provider, Missing: missing}
	}

	host, secure, err := splitEndpoint(p.Hostname)
	if err != nil {
		return nil, &ConfigError{Provider: provider, Err: err}
	}

	creds := signer.Credentials{
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		SessionToken:    p.SessionToken,
	}
	s, err := signer.New(signer.WithCredentials(creds), signer.WithRegion(p.Region))
	if err != nil {
		return nil, &ConfigError{Provider: provider, Err: err}
	}

	return &Client{
		Provider:    provider,
		Hostname:    host,
		Region:      p.Region,
		PathStyle:   p.PathStyle,
		Secure:      secure,
		Credentials: creds,
		signer:      s,
	}, nil
}

// splitEndpoint accepts "host", "host:port" or "scheme://host[:port]"
func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
}

// Signer returns the SigV4 signer bound to this client's region and credentials.
// Extra options (a fixed clock in tests) produce a fresh signer.
func (c *Client) Signer(opts ...signer.Option) (*signer.Signer, error) {
	if len(opts) == 0 {
		return c.signer, nil
	}
	base := []signer.Option{signer.WithCredentials(c.Credentials), signer.WithRegion(c.Region)}
	return signer.New(append(base, opts...)...)
}

func (c *Client) scheme() string {
	if c.Secure {
		return "https"
	}
	return "http"
}

// Endpoint returns the service base URL, e.g. "https://s3.us-east-1.amazonaws.com"
func (c *Client) Endpoint() string {
	return c.scheme() + "://" + c.Hostname
}

// BucketURL returns the base URL for a bucket, honouring path-style addressing
func (c *Client) BucketURL(bucket string) *url.URL {
	if c.PathStyle {
		return &url.URL{Scheme: c.scheme(), Host: c.Hostname, Path: "/" + bucket}
	}
	return &url.URL{Scheme: c.scheme(), Host: bucket + "." + c.Hostname, Path: "/"}
}

// ObjectURL returns the URL of an object. The key is kept unescaped in Path.
func (c *Client) ObjectURL(bucket, key string) *url.URL {
	u := c.BucketURL(bucket)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + key
	return u
}
