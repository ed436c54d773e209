package storage

import (
	"strings"

	"marketplace_backend/platform/apperr"
)

// AllowedContentTypes defines the allowed MIME types for uploads.
var AllowedContentTypes = map[string]bool{
	// Images
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,

	// Documents
	"application/pdf": true,
	"text/plain":      true,

	// Video
	"video/mp4":       true,
	"video/quicktime": true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedContentTypes[normalized] {
		return apperr.ValidationField("contentType", "content type "+contentType+" is not allowed")
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func ValidateFileSize(sizeBytes, maxFileSize int64) error {
	if sizeBytes <= 0 {
		return apperr.ValidationField("size", "file size must be greater than 0")
	}
	if maxFileSize > 0 && sizeBytes > maxFileSize {
		return apperr.ValidationField("size", "file exceeds the maximum allowed size")
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
