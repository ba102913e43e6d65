package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/service"
)

const (
	uploadField        = "file"
	multipartMemory    = 10 << 20
	deleteBodyMaxBytes = 64 << 10
)

var errUnexpectedFile = errors.New("upload must contain exactly one file in the file field")

// FileService stores and removes publicly linked files.
type FileService interface {
	Upload(ctx context.Context, params service.UploadParams) (string, error)
	Delete(ctx context.Context, link string) error
}

// File serves the storage proxy routes. Outcomes are reported in the body;
// the HTTP status is always 200.
type File struct {
	service  FileService
	maxBytes int64
	logger   *logger.Logger
}

// NewFile creates a new File handler.
func NewFile(service FileService, maxBytes int64, logger *logger.Logger) *File {
	return &File{service: service, maxBytes: maxBytes, logger: logger}
}

type deleteFileRequest struct {
	LinkImage string `json:"linkImage"`
}

// Upload accepts a multipart form with a single file under "file".
func (h *File) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	fh, err := h.singleFile(r)
	if err != nil {
		h.logger.Warn("File handler: rejected upload", "error", err)
		writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("File handler: failed to open upload", "filename", fh.Filename, "error", err)
		writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
		return
	}
	defer f.Close()

	link, err := h.service.Upload(r.Context(), service.UploadParams{
		Filename:    fh.Filename,
		Reader:      f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		h.logger.Error("File handler: upload failed", "filename", fh.Filename, "error", err)
		writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
		return
	}

	writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusOK, Link: link})
}

func (h *File) singleFile(r *http.Request) (*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	var found *multipart.FileHeader
	for field, headers := range r.MultipartForm.File {
		if field != uploadField || len(headers) != 1 {
			return nil, errUnexpectedFile
		}
		found = headers[0]
	}
	if found == nil {
		return nil, errUnexpectedFile
	}

	return found, nil
}

// Delete removes the object referenced by linkImage, sent as JSON or as a
// url-encoded form.
func (h *File) Delete(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, deleteBodyMaxBytes)

	link, err := readLink(r)
	if err != nil {
		h.logger.Warn("File handler: rejected delete", "error", err)
		writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
		return
	}

	if err := h.service.Delete(r.Context(), link); err != nil {
		h.logger.Error("File handler: delete failed", "link", link, "error", err)
		writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
		return
	}

	writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusOK})
}

func readLink(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req deleteFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("failed to decode body: %w", err)
		}
		return req.LinkImage, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("failed to parse form: %w", err)
	}
	return r.PostForm.Get("linkImage"), nil
}

// StorageDisabled answers the storage routes when no bucket is configured.
func StorageDisabled(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, fileResponse{StatusCode: http.StatusBadRequest})
}
