package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/storage"
)

const (
	maxImageForm = 12 << 20
	maxVideoForm = 1 << 30
	multipartMem = 8 << 20
	sniffLength  = 512
	imageMedia   = "image/"
	videoMedia   = "video/"
)

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		return apperr.Validation("invalid multipart form")
	}
	return nil
}

// saveUpload stores the file in form field, if any, under prefix. ok is false when the field is
// absent. The content is sniffed and must match media.
func saveUpload(ctx context.Context, store MediaStore, r *http.Request, field, prefix, ownerID, media string) (ref string, ok bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Validation("invalid " + field + " upload")
	}
	defer file.Close()

	if store == nil {
		return "", false, apperr.Unavailable("media uploads are not configured", nil)
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", false, apperr.Validation(field + " is empty")
		}
		return "", false, apperr.Validation("invalid " + field + " upload")
	}
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, media) {
		return "", false, apperr.Validation(field + " must be " + strings.TrimSuffix(media, "/") + " content")
	}

	key := storage.ObjectKey(prefix, ownerID, header.Filename)
	ref, err = store.Save(ctx, storage.Object{
		Key:         key,
		ContentType: contentType,
		Body:        io.MultiReader(bytes.NewReader(head[:n]), file),
	})
	if err != nil {
		return "", false, apperr.Unavailable("store "+field, err)
	}
	logging.FromContext(ctx).Info("media uploaded", "field", field, "key", key, "contentType", contentType)
	return ref, true, nil
}
