package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/robertrittmuller/stagemaster-ai/internal/domain"
	"github.com/robertrittmuller/stagemaster-ai/internal/storage"
)

// MaxUploadBytes caps a single room photo upload.
const MaxUploadBytes = 25 << 20

type imageResponse struct {
	ID          string `json:"id"`
	OriginalURL string `json:"original_url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UploadImage stores the multipart "file" field in the uploads bucket and
// records it as a source image.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds 25 MiB")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	if len(data) > MaxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds 25 MiB")
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "file must be an image")
		return
	}

	id := uuid.NewString()
	key := id + storage.ExtensionForContentType(contentType)
	url, err := a.Store.Write(r.Context(), a.UploadsBucket, key, data, contentType)
	if err != nil {
		a.fail(w, err, "failed to store image")
		return
	}
	image := &domain.SourceImage{
		ID:          id,
		OriginalURL: url,
		Filename:    header.Filename,
		ContentType: contentType,
	}
	if err := a.Images.Create(r.Context(), image); err != nil {
		a.fail(w, err, "failed to record image")
		return
	}
	a.Logger.Info().Str("image_id", id).Str("bucket", a.UploadsBucket).Str("key", key).Msg("api: image uploaded")
	a.json(w, http.StatusCreated, imageResponse{
		ID:          image.ID,
		OriginalURL: image.OriginalURL,
		Filename:    image.Filename,
		ContentType: image.ContentType,
	})
}
