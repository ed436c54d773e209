package service

import (
	"context"
	"net/url"
	"strings"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
)

// PhotoConfig names the bucket job photos are uploaded to.
type PhotoConfig interface {
	GetMinioBucketJobPhotos() string
}

// SetPhotoStorage enables presigned photo uploads.
func (s *Service) SetPhotoStorage(store storage.StorageService, cfg PhotoConfig) {
	s.photos = store
	s.photoCfg = cfg
}

// PresignPhoto returns an upload URL for a photo of a job the principal may edit.
func (s *Service) PresignPhoto(ctx context.Context, p domain.Principal, id string, req transport.PresignPhotoRequest) (*transport.PhotoUploadResponse, error) {
	if s.photos == nil || s.photoCfg == nil {
		return nil, apperr.Internal("photo uploads are not configured")
	}
	if !storage.IsImageContentType(req.ContentType) {
		return nil, apperr.ValidationField("contentType", "photos must be images")
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanMutate(p, job, []string{domain.FieldPhotos}).Err(); err != nil {
		return nil, err
	}

	presigned, err := s.photos.GenerateUploadURL(ctx, s.photoCfg.GetMinioBucketJobPhotos(), job.ID, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, err
	}

	return &transport.PhotoUploadResponse{
		UploadURL: presigned.URL,
		FileKey:   presigned.FileKey,
		PhotoURL:  objectURL(presigned.URL),
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// objectURL strips the signature from a presigned URL.
func objectURL(presigned string) string {
	u, err := url.Parse(presigned)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

// photoKey maps a stored photo URL back to its object key in the photo
// bucket. URLs outside the bucket yield "".
func (s *Service) photoKey(photoURL string) string {
	u, err := url.Parse(photoURL)
	if err != nil {
		return ""
	}
	key, ok := strings.CutPrefix(u.Path, "/"+s.photoCfg.GetMinioBucketJobPhotos()+"/")
	if !ok {
		return ""
	}
	return key
}

// removePhotos deletes uploaded photo objects. Failures are logged; the job
// change that dropped them has already committed.
func (s *Service) removePhotos(ctx context.Context, jobID string, photos []string) {
	if s.photos == nil || s.photoCfg == nil {
		return
	}
	bucket := s.photoCfg.GetMinioBucketJobPhotos()
	for _, photo := range photos {
		key := s.photoKey(photo)
		if !strings.HasPrefix(key, jobID+"/") {
			continue
		}
		if err := s.photos.DeleteObject(ctx, bucket, key); err != nil {
			s.log.Warn("failed to delete job photo", "jobId", jobID, "key", key, "error", err)
		}
	}
}

// droppedPhotos lists the entries of before that after no longer holds.
func droppedPhotos(before, after []string) []string {
	kept := make(map[string]bool, len(after))
	for _, photo := range after {
		kept[photo] = true
	}
	var dropped []string
	for _, photo := range before {
		if !kept[photo] {
			dropped = append(dropped, photo)
		}
	}
	return dropped
}
