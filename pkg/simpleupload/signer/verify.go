package signer

import (
	"crypto/hmac"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Verify recomputes the signature of a presigned URL as storage would and
// checks it against X-Amz-Signature. header carries the headers the caller
// sent; only names listed in X-Amz-SignedHeaders are considered.
func (s *Signer) Verify(method, rawURL string, header http.Header) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	query := u.Query()
	signature := query.Get("X-Amz-Signature")
	if signature == "" {
		return ErrMissingSignature
	}
	query.Del("X-Amz-Signature")

	if query.Get("X-Amz-Algorithm") != Algorithm {
		return fmt.Errorf("%w: unsupported algorithm", ErrMalformedURL)
	}

	signedAt, err := time.Parse(amzDateFormat, query.Get("X-Amz-Date"))
	if err != nil {
		return fmt.Errorf("%w: X-Amz-Date: %v", ErrMalformedURL, err)
	}
	expires, err := strconv.ParseInt(query.Get("X-Amz-Expires"), 10, 64)
	if err != nil || expires <= 0 {
		return fmt.Errorf("%w: X-Amz-Expires", ErrMalformedURL)
	}
	if s.now().UTC().After(signedAt.Add(time.Duration(expires) * time.Second)) {
		return ErrExpired
	}

	if query.Get("X-Amz-Credential") != s.creds.AccessKeyID+"/"+s.scope(signedAt) {
		return ErrInvalidSignature
	}

	signedNames := query.Get("X-Amz-SignedHeaders")
	if signedNames == "" {
		return fmt.Errorf("%w: X-Amz-SignedHeaders", ErrMalformedURL)
	}
	var headers headerList
	for _, name := range strings.Split(signedNames, ";") {
		if name == "host" {
			headers = append(headers, headerPair{name: name, value: strings.ToLower(u.Host)})
			continue
		}
		headers = append(headers, headerPair{name: name, value: canonicalHeaderValue(header.Values(name))})
	}

	expected := s.sign(signedAt, canonicalRequest(method, canonicalURI(u.Path), canonicalQuery(query), headers, UnsignedPayload))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}
