// Package simpleupload authorizes direct browser uploads to S3-compatible storage.
//
// The application server never sees file bytes. A client POSTs file
// descriptors to a Handler, which checks them against a named Route, runs the
// route's hooks and answers with short-lived signed URLs (or POST forms, or a
// full multipart session) the client uses to talk to storage directly.
//
// # Basic Usage
//
//	client, err := storage.AWS(storage.ProviderParams{Region: "us-east-1"})
//	images, err := simpleupload.NewRoute("images",
//	    simpleupload.WithFileTypes("image/*"),
//	    simpleupload.WithMaxFileSize(10<<20),
//	    simpleupload.WithMultipleFiles(5),
//	)
//	h, err := simpleupload.New(client, "my-bucket", []*simpleupload.Route{images})
//
//	res := h.Handle(ctx, &simpleupload.Request{Method: r.Method, Header: r.Header, Body: r.Body})
//
// The api package mounts a Handler on net/http and chi.
//
// # Hooks
//
// Before-upload hooks may reject a request with RejectUpload, redirect it to
// another bucket or supply per-file object info. After-signed-URL hooks see the
// final keys and contribute response metadata. Both run once per request.
// Any hook error other than a RejectError is a 500.
package simpleupload
