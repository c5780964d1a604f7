package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// Algorithm is the SigV4 algorithm tag
	Algorithm = "AWS4-HMAC-SHA256"

	// UnsignedPayload is the payload hash used for presigned requests
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// MaxExpiry is the longest validity window SigV4 accepts
	MaxExpiry = 7 * 24 * time.Hour

	amzDateFormat   = "20060102T150405Z"
	dateStampFormat = "20060102"
	terminator      = "aws4_request"
)

// Credentials is an access key pair with an optional session token
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Signer produces SigV4 presigned URLs and POST policies
type Signer struct {
	creds   Credentials
	region  string
	service string
	now     func() time.Time
}

// New creates a Signer. Credentials and region are required.
func New(opts ...Option) (*Signer, error) {
	s := &Signer{
		service: "s3",
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.creds.AccessKeyID == "" || s.creds.SecretAccessKey == "" {
		return nil, ErrNoCredentials
	}
	if s.region == "" {
		return nil, ErrNoRegion
	}

	return s, nil
}

// Region returns the region bound into the credential scope
func (s *Signer) Region() string {
	return s.region
}

// PresignInput describes a request to presign with query-string authentication
type PresignInput struct {
	Method string
	URL    *url.URL

	// Header holds headers the caller of the URL must send verbatim.
	// Host is always signed and need not be included.
	Header http.Header

	// Query holds extra parameters bound into the signature (uploadId, partNumber, ...)
	Query url.Values

	ExpiresIn time.Duration
}

// Presign returns a URL carrying an X-Amz-Signature over method, path, the
// given headers and every query parameter.
//
// Example:
//
//	u, _ := url.Parse("https://bucket.s3.us-east-1.amazonaws.com/photos/a.jpg")
//	signed, err := s.Presign(signer.PresignInput{Method: "PUT", URL: u, ExpiresIn: 2 * time.Minute})
func (s *Signer) Presign(in PresignInput) (string, error) {
	if in.URL == nil {
		return "", fmt.Errorf("%w: nil URL", ErrMalformedURL)
	}
	seconds, err := expirySeconds(in.ExpiresIn)
	if err != nil {
		return "", err
	}

	t := s.now().UTC()
	amzDate := t.Format(amzDateFormat)

	query := url.Values{}
	for k, v := range in.URL.Query() {
		query[k] = append([]string(nil), v...)
	}
	for k, v := range in.Query {
		query[k] = append([]string(nil), v...)
	}

	headers := canonicalHeaders(in.URL.Host, in.Header)
	signedHeaders := headers.names()

	query.Set("X-Amz-Algorithm", Algorithm)
	query.Set("X-Amz-Credential", s.creds.AccessKeyID+"/"+s.scope(t))
	query.Set("X-Amz-Date", amzDate)
	query.Set("X-Amz-Expires", strconv.FormatInt(seconds, 10))
	query.Set("X-Amz-SignedHeaders", signedHeaders)
	if s.creds.SessionToken != "" {
		query.Set("X-Amz-Security-Token", s.creds.SessionToken)
	}

	uri := canonicalURI(in.URL.Path)
	rawQuery := canonicalQuery(query)
	signature := s.sign(t, canonicalRequest(in.Method, uri, rawQuery, headers, UnsignedPayload))

	return in.URL.Scheme + "://" + in.URL.Host + uri + "?" + rawQuery + "&X-Amz-Signature=" + signature, nil
}

// DeriveSigningKey computes the SigV4 signing key for one day, region and service
func DeriveSigningKey(secret string, t time.Time, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), t.UTC().Format(dateStampFormat))
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, terminator)
}

func (s *Signer) scope(t time.Time) string {
	return strings.Join([]string{t.UTC().Format(dateStampFormat), s.region, s.service, terminator}, "/")
}

func (s *Signer) stringToSign(t time.Time, canonical string) string {
	hash := sha256.Sum256([]byte(canonical))
	return strings.Join([]string{
		Algorithm,
		t.UTC().Format(amzDateFormat),
		s.scope(t),
		hex.EncodeToString(hash[:]),
	}, "\n")
}

func (s *Signer) sign(t time.Time, canonical string) string {
	key := DeriveSigningKey(s.creds.SecretAccessKey, t, s.region, s.service)
	return hex.EncodeToString(hmacSHA256(key, s.stringToSign(t, canonical)))
}

func expirySeconds(d time.Duration) (int64, error) {
	seconds := int64(d / time.Second)
	if seconds <= 0 || d > MaxExpiry {
		return 0, fmt.Errorf("%w: %s", ErrInvalidExpiry, d)
	}
	return seconds, nil
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

type headerPair struct {
	name  string
	value string
}

type headerList []headerPair

func (l headerList) names() string {
	names := make([]string, len(l))
	for i, h := range l {
		names[i] = h.name
	}
	return strings.Join(names, ";")
}

func (l headerList) String() string {
	var b strings.Builder
	for _, h := range l {
		b.WriteString(h.name)
		b.WriteByte(':')
		b.WriteString(h.value)
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalHeaders lower-cases names, trims values and sorts by name.
// Host always comes from the request URL.
func canonicalHeaders(host string, header http.Header) headerList {
	list := headerList{{name: "host", value: strings.ToLower(host)}}
	for name, values := range header {
		lower := strings.ToLower(name)
		if lower == "host" {
			continue
		}
		list = append(list, headerPair{name: lower, value: canonicalHeaderValue(values)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	return list
}

func canonicalHeaderValue(values []string) string {
	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.Join(strings.Fields(v), " ")
	}
	return strings.Join(trimmed, ",")
}

func canonicalRequest(method, uri, query string, headers headerList, payloadHash string) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		uri,
		query,
		headers.String(),
		headers.names(),
		payloadHash,
	}, "\n")
}
