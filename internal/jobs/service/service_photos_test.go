package service

import (
	"context"
	"testing"
	"time"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/jobs/domain"
	"marketplace_backend/internal/jobs/transport"
	"marketplace_backend/platform/apperr"
)

type photoStorage struct {
	bucket  string
	folder  string
	deleted []string
}

func (s *photoStorage) GenerateUploadURL(_ context.Context, bucket, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	s.bucket, s.folder = bucket, folder
	key := folder + "/" + fileName
	return &storage.PresignedURL{
		URL:       "https://files.example.com/" + bucket + "/" + key + "?X-Amz-Signature=abc",
		FileKey:   key,
		ExpiresAt: time.Now().Add(storage.PresignedURLTTL),
	}, nil
}

func (s *photoStorage) GenerateDownloadURL(context.Context, string, string) (*storage.PresignedURL, error) {
	return nil, nil
}

func (s *photoStorage) DeleteObject(_ context.Context, bucket, key string) error {
	s.deleted = append(s.deleted, bucket+"/"+key)
	return nil
}

func (s *photoStorage) EnsureBucketExists(context.Context, string) error { return nil }

type photoBucket struct{}

func (photoBucket) GetMinioBucketJobPhotos() string { return "job-photos" }

func TestPresignPhoto(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	owner := domain.Principal{Actor: customer}
	req := transport.PresignPhotoRequest{FileName: "tap.jpg", ContentType: "image/jpeg", SizeBytes: 1024}

	created, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "plumbing"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if _, err := svc.PresignPhoto(ctx, owner, created.Job.ID, req); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error without storage, got %v", err)
	}

	store := &photoStorage{}
	svc.SetPhotoStorage(store, photoBucket{})

	if _, err := svc.PresignPhoto(ctx, domain.Principal{Actor: otherCust}, created.Job.ID, req); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for another customer, got %v", err)
	}

	pdf := req
	pdf.ContentType = "application/pdf"
	if _, err := svc.PresignPhoto(ctx, owner, created.Job.ID, pdf); apperr.Field(err) != "contentType" {
		t.Fatalf("expected contentType validation error, got %v", err)
	}

	upload, err := svc.PresignPhoto(ctx, owner, created.Job.ID, req)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if store.bucket != "job-photos" || store.folder != created.Job.ID {
		t.Fatalf("unexpected upload target %s/%s", store.bucket, store.folder)
	}
	want := "https://files.example.com/job-photos/" + created.Job.ID + "/tap.jpg"
	if upload.PhotoURL != want {
		t.Fatalf("expected photo url %q, got %q", want, upload.PhotoURL)
	}
}

func TestDroppedPhotosAreRemovedFromStorage(t *testing.T) {
	svc, _, _ := newTestService(t)
	store := &photoStorage{}
	svc.SetPhotoStorage(store, photoBucket{})
	ctx := context.Background()
	owner := domain.Principal{Actor: customer}

	created, err := svc.CreateDraft(ctx, customer, "", transport.CreateJobRequest{Category: "plumbing"})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	id := created.Job.ID
	base := "https://files.example.com/job-photos/" + id + "/"
	external := "https://elsewhere.example.com/pic.jpg"

	photos := []string{base + "a.jpg", base + "b.jpg", external}
	if _, err := svc.PatchDraft(ctx, owner, id, transport.PatchDraftRequest{Photos: &photos}); err != nil {
		t.Fatalf("patch photos: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("adding photos must not delete anything, got %v", store.deleted)
	}

	kept := []string{base + "a.jpg"}
	if _, err := svc.PatchDraft(ctx, owner, id, transport.PatchDraftRequest{Photos: &kept}); err != nil {
		t.Fatalf("drop photos: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "job-photos/"+id+"/b.jpg" {
		t.Fatalf("expected only the dropped bucket photo removed, got %v", store.deleted)
	}

	if err := svc.Delete(ctx, owner, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.deleted) != 2 || store.deleted[1] != "job-photos/"+id+"/a.jpg" {
		t.Fatalf("expected the remaining photo removed with the job, got %v", store.deleted)
	}
}
