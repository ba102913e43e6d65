package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/metrics"
	"github.com/dtroode/hasura-webhook/internal/model"
)

// ErrInvalidFile is returned for uploads and deletions that cannot be mapped
// to an object key.
var ErrInvalidFile = errors.New("invalid file reference")

// UploadParams describes a single uploaded file.
type UploadParams struct {
	Filename    string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// File proxies uploads and deletions to object storage under an app prefix.
type File struct {
	storage   model.ObjectStorage
	appPrefix string
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewFile creates a File service.
func NewFile(storage model.ObjectStorage, appPrefix string, metrics *metrics.Metrics, logger *logger.Logger) *File {
	return &File{
		storage:   storage,
		appPrefix: strings.Trim(appPrefix, "/"),
		metrics:   metrics,
		logger:    logger,
	}
}

// Upload stores the file publicly and returns its link.
func (s *File) Upload(ctx context.Context, params UploadParams) (string, error) {
	if params.Filename == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidFile)
	}

	key := s.objectKey(params.Filename)
	err := s.storage.Upload(ctx, model.UploadObject{
		Key:         key,
		Reader:      params.Reader,
		Size:        params.Size,
		ContentType: params.ContentType,
	})
	s.metrics.RecordStorageOperation("upload", err)
	if err != nil {
		s.logger.Error("File service: upload failed",
			"key", key,
			"error", err.Error())
		return "", fmt.Errorf("%w: %w", model.ErrStorageBackend, err)
	}

	s.logger.Info("File service: file uploaded",
		"key", key,
		"size", params.Size)

	return s.storage.PublicURL(key), nil
}

// Delete removes the object a previously returned link points to.
func (s *File) Delete(ctx context.Context, link string) error {
	name, err := FileNameFromLink(link)
	if err != nil {
		return err
	}

	key := s.objectKey(name)
	err = s.storage.Delete(ctx, key)
	s.metrics.RecordStorageOperation("delete", err)
	if err != nil {
		s.logger.Error("File service: delete failed",
			"key", key,
			"error", err.Error())
		return fmt.Errorf("%w: %w", model.ErrStorageBackend, err)
	}

	s.logger.Info("File service: file deleted",
		"key", key)

	return nil
}

func (s *File) objectKey(name string) string {
	if s.appPrefix == "" {
		return name
	}
	return s.appPrefix + "/" + name
}

// FileNameFromLink returns the percent-decoded last path segment of link.
func FileNameFromLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	segment := link[strings.LastIndex(link, "/")+1:]
	if segment == "" {
		return "", fmt.Errorf("%w: link has no file name", ErrInvalidFile)
	}

	name, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: link has no file name", ErrInvalidFile)
	}

	return name, nil
}
