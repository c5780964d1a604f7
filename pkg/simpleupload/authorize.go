package simpleupload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-upload/pkg/simpleupload/sessions"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
	"github.com/tendant/simple-upload/pkg/simpleupload/storage"
)

func (h *Handler) authorizeSingle(route *Route, bucket string, infos []FileInfo) ([]SignedFile, error) {
	files := make([]SignedFile, len(infos))

	var g errgroup.Group
	for i, info := range infos {
		g.Go(func() error {
			files[i].File = info
			if route.method == MethodPost {
				form, err := h.signPost(route, bucket, info)
				if err != nil {
					return fmt.Errorf("sign POST for %s: %w", info.ObjectInfo.Key, err)
				}
				files[i].PostForm = form
				return nil
			}

			signed, err := h.signPut(route, bucket, info)
			if err != nil {
				return fmt.Errorf("sign PUT for %s: %w", info.ObjectInfo.Key, err)
			}
			files[i].SignedURL = signed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (h *Handler) signPut(route *Route, bucket string, info FileInfo) (string, error) {
	header := ObjectHeaders(info.Type, info.ObjectInfo)
	header.Set("Content-Length", strconv.FormatInt(info.Size, 10))

	return h.signer.Presign(signer.PresignInput{
		Method:    http.MethodPut,
		URL:       h.client.ObjectURL(bucket, info.ObjectInfo.Key),
		Header:    header,
		ExpiresIn: route.signedURLExpiresIn,
	})
}

func (h *Handler) signPost(route *Route, bucket string, info FileInfo) (*signer.PostForm, error) {
	return h.signer.PresignPost(signer.PostPolicyInput{
		URL:        h.client.BucketURL(bucket),
		Bucket:     bucket,
		Key:        info.ObjectInfo.Key,
		Fields:     objectFormFields(info.Type, info.ObjectInfo),
		Conditions: []signer.Condition{signer.ContentLengthRange(0, info.Size)},
		ExpiresIn:  route.signedURLExpiresIn,
	})
}

// authorizeMultipart opens one session per file concurrently. If any file
// fails, sessions already opened for its siblings are aborted.
func (h *Handler) authorizeMultipart(ctx context.Context, route *Route, bucket string, infos []FileInfo) ([]MultipartFile, error) {
	files := make([]MultipartFile, len(infos))

	g, gctx := errgroup.WithContext(ctx)
	for i, info := range infos {
		g.Go(func() error {
			f, err := h.openSession(gctx, route, bucket, info)
			if f != nil {
				files[i] = *f
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		h.discardSessions(ctx, bucket, files)
		return nil, err
	}
	return files, nil
}

// openSession returns the partially built file alongside any signing error
// so the caller can abort the session it opened.
func (h *Handler) openSession(ctx context.Context, route *Route, bucket string, info FileInfo) (*MultipartFile, error) {
	mp := route.multipart
	ranges, err := ComputeParts(info.Size, mp.PartSize)
	if err != nil {
		return nil, err
	}

	obj := info.ObjectInfo
	uploadID, err := h.creator.CreateMultipartUpload(ctx, storage.MultipartParams{
		Bucket:       bucket,
		Key:          obj.Key,
		ContentType:  info.Type,
		CacheControl: obj.CacheControl,
		ACL:          obj.ACL,
		StorageClass: obj.StorageClass,
		Metadata:     obj.Metadata,
	})
	if err != nil {
		return nil, err
	}

	file := &MultipartFile{File: info, UploadID: uploadID, Parts: make([]Part, 0, len(ranges))}

	if h.recorder != nil {
		err := h.recorder.Record(ctx, sessions.Session{
			UploadID:  uploadID,
			Bucket:    bucket,
			Key:       obj.Key,
			Route:     route.name,
			CreatedAt: h.now(),
		})
		if err != nil {
			h.logger.Warn("failed to record multipart session", "upload_id", uploadID, "key", obj.Key, "error", err)
		}
	}

	objectURL := h.client.ObjectURL(bucket, obj.Key)
	for _, r := range ranges {
		signed, err := h.signer.Presign(signer.PresignInput{
			Method: http.MethodPut,
			URL:    objectURL,
			Header: http.Header{"Content-Length": {strconv.FormatInt(r.Size, 10)}},
			Query: url.Values{
				"partNumber": {strconv.Itoa(r.Number)},
				"uploadId":   {uploadID},
			},
			ExpiresIn: mp.PartURLExpiresIn,
		})
		if err != nil {
			return file, fmt.Errorf("sign part %d of %s: %w", r.Number, obj.Key, err)
		}
		file.Parts = append(file.Parts, Part{SignedURL: signed, PartNumber: r.Number, Size: r.Size})
	}

	session := url.Values{"uploadId": {uploadID}}
	file.CompleteSignedURL, err = h.signer.Presign(signer.PresignInput{
		Method:    http.MethodPost,
		URL:       objectURL,
		Query:     session,
		ExpiresIn: mp.CompleteURLExpiresIn,
	})
	if err != nil {
		return file, fmt.Errorf("sign complete for %s: %w", obj.Key, err)
	}
	file.AbortSignedURL, err = h.signer.Presign(signer.PresignInput{
		Method:    http.MethodDelete,
		URL:       objectURL,
		Query:     session,
		ExpiresIn: mp.CompleteURLExpiresIn,
	})
	if err != nil {
		return file, fmt.Errorf("sign abort for %s: %w", obj.Key, err)
	}

	return file, nil
}

// discardSessions aborts sessions that will never reach the client. Failures
// are logged; the session ledger still lets the sweeper retry them.
func (h *Handler) discardSessions(ctx context.Context, bucket string, files []MultipartFile) {
	aborter, ok := h.creator.(storage.MultipartAborter)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, f := range files {
		if f.UploadID == "" {
			continue
		}
		err := aborter.AbortMultipartUpload(ctx, bucket, f.File.ObjectInfo.Key, f.UploadID)
		if err != nil && !errors.Is(err, storage.ErrNoSuchUpload) {
			h.logger.Warn("failed to abort multipart session", "upload_id", f.UploadID, "key", f.File.ObjectInfo.Key, "error", err)
		}
	}
}
