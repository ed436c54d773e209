package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// PresignedURLTTL is the default expiration time for presigned URLs (15 minutes).
	PresignedURLTTL = 15 * time.Minute
)

// MinIOService implements StorageService using MinIO.
type MinIOService struct {
	client      *minio.Client
	maxFileSize int64
}

var _ StorageService = (*MinIOService)(nil)

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{
		client:      client,
		maxFileSize: cfg.GetMinIOMaxFileSize(),
	}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// GenerateUploadURL validates the upload and creates a presigned PUT URL
// under a unique key, so uploads never overwrite each other.
func (s *MinIOService) GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}
	if err := ValidateFileSize(sizeBytes, s.maxFileSize); err != nil {
		return nil, err
	}

	fileKey := ObjectKey(folder, fileName, uuid.New().String()[:8])
	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedPutObject(ctx, bucket, fileKey, PresignedURLTTL)
	if err != nil {
		return nil, apperr.Unavailable("storage.presign_upload", err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// GenerateDownloadURL creates a presigned URL for downloading a file.
func (s *MinIOService) GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)

	presignedURL, err := s.client.PresignedGetObject(ctx, bucket, fileKey, PresignedURLTTL, make(url.Values))
	if err != nil {
		return nil, apperr.Unavailable("storage.presign_download", err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteObject removes an object from storage.
func (s *MinIOService) DeleteObject(ctx context.Context, bucket, fileKey string) error {
	err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", fileKey, err)
	}
	return nil
}

// ObjectKey builds "<folder>/<base>_<suffix><ext>" from a client file name.
// Directory parts of fileName are dropped.
func ObjectKey(folder, fileName, suffix string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	ext := path.Ext(name)
	baseName := strings.TrimSuffix(name, ext)
	return path.Join(folder, fmt.Sprintf("%s_%s%s", baseName, suffix, ext))
}
