// Package signer implements AWS Signature Version 4 for browser uploads.
//
// It produces query-string presigned URLs (PUT parts, complete and abort
// calls) and signed POST policies for form-based uploads, without any round
// trip to storage. Storage verifies authenticity, expiry and an exact match
// of every signed header and query parameter on its own.
//
// # Basic Usage
//
//	s, err := signer.New(
//	    signer.WithCredentials(signer.Credentials{AccessKeyID: id, SecretAccessKey: secret}),
//	    signer.WithRegion("us-east-1"),
//	)
//	u, _ := url.Parse("https://my-bucket.s3.us-east-1.amazonaws.com/photos/cat.jpg")
//	signed, err := s.Presign(signer.PresignInput{
//	    Method:    http.MethodPut,
//	    URL:       u,
//	    Header:    http.Header{"Content-Type": {"image/jpeg"}},
//	    ExpiresIn: 2 * time.Minute,
//	})
//
// Form uploads:
//
//	form, err := s.PresignPost(signer.PostPolicyInput{
//	    URL:        bucketURL,
//	    Bucket:     "my-bucket",
//	    Key:        "photos/cat.jpg",
//	    Fields:     signer.FormFields{{Name: "Content-Type", Value: "image/jpeg"}},
//	    Conditions: []signer.Condition{signer.ContentLengthRange(0, size)},
//	    ExpiresIn:  2 * time.Minute,
//	})
//
// Verify recomputes a signature the way storage does and is handy in tests
// and local emulators.
package signer
