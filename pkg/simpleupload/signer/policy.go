package signer

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const policyTimeFormat = "2006-01-02T15:04:05.000Z"

// Condition is one entry of a POST policy condition list
type Condition struct {
	op    string
	field string
	value string
	min   int64
	max   int64
}

// Equals requires a form field to match value exactly
func Equals(field, value string) Condition {
	return Condition{op: "eq", field: field, value: value}
}

// StartsWith requires a form field to begin with prefix
func StartsWith(field, prefix string) Condition {
	return Condition{op: "starts-with", field: field, value: prefix}
}

// ContentLengthRange bounds the size of the uploaded file in bytes
func ContentLengthRange(min, max int64) Condition {
	return Condition{op: "content-length-range", min: min, max: max}
}

// MarshalJSON encodes the condition in the array form S3 expects
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.op == "content-length-range" {
		return json.Marshal([]any{c.op, c.min, c.max})
	}
	return json.Marshal([]any{c.op, "$" + c.field, c.value})
}

// FormField is a single multipart form field
type FormField struct {
	Name  string
	Value string
}

// FormFields is an ordered list of form fields. It encodes as a JSON object
// whose key order is the list order; providers reject POSTs whose file part
// precedes the policy fields, so order must survive the round trip.
type FormFields []FormField

// Get returns the value of the first field with the given name
func (f FormFields) Get(name string) string {
	for _, field := range f {
		if field.Name == name {
			return field.Value
		}
	}
	return ""
}

// MarshalJSON writes the fields as an object in list order
func (f FormFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping the order of its keys
func (f *FormFields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("form fields: expected object")
	}

	var fields FormFields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("form fields: expected string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("form fields: field %q: %w", name, err)
		}
		fields = append(fields, FormField{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = fields
	return nil
}

// PostForm is what a browser needs for a form-based POST upload
type PostForm struct {
	URL    string     `json:"url"`
	Fields FormFields `json:"fields"`
}

// PostPolicyInput describes a POST policy to sign
type PostPolicyInput struct {
	// URL is the bucket URL the form is posted to
	URL    *url.URL
	Bucket string
	Key    string

	// Fields are sent with the form and bound by exact-match conditions
	Fields FormFields

	// Conditions are additional rules such as ContentLengthRange
	Conditions []Condition

	ExpiresIn time.Duration
}

type policyDocument struct {
	Expiration string      `json:"expiration"`
	Conditions []Condition `json:"conditions"`
}

// PresignPost signs a POST policy and returns the form the client must submit
func (s *Signer) PresignPost(in PostPolicyInput) (*PostForm, error) {
	if in.URL == nil {
		return nil, fmt.Errorf("%w: nil URL", ErrMalformedURL)
	}
	if _, err := expirySeconds(in.ExpiresIn); err != nil {
		return nil, err
	}

	t := s.now().UTC()
	amzDate := t.Format(amzDateFormat)
	credential := s.creds.AccessKeyID + "/" + s.scope(t)

	fields := FormFields{{Name: "key", Value: in.Key}}
	fields = append(fields, in.Fields...)

	var conditions []Condition
	if in.Bucket != "" {
		conditions = append(conditions, Equals("bucket", in.Bucket))
	}
	for _, field := range fields {
		conditions = append(conditions, Equals(field.Name, field.Value))
	}

	auth := FormFields{
		{Name: "x-amz-algorithm", Value: Algorithm},
		{Name: "x-amz-credential", Value: credential},
		{Name: "x-amz-date", Value: amzDate},
	}
	if s.creds.SessionToken != "" {
		auth = append(auth, FormField{Name: "x-amz-security-token", Value: s.creds.SessionToken})
	}
	for _, field := range auth {
		conditions = append(conditions, Equals(field.Name, field.Value))
	}
	conditions = append(conditions, in.Conditions...)

	doc, err := json.Marshal(policyDocument{
		Expiration: t.Add(in.ExpiresIn).Format(policyTimeFormat),
		Conditions: conditions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode POST policy: %w", err)
	}

	policy := base64.StdEncoding.EncodeToString(doc)
	key := DeriveSigningKey(s.creds.SecretAccessKey, t, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(key, policy))

	fields = append(fields, FormField{Name: "policy", Value: policy})
	fields = append(fields, auth...)
	fields = append(fields, FormField{Name: "x-amz-signature", Value: signature})

	return &PostForm{URL: in.URL.String(), Fields: fields}, nil
}
