package storage

import (
	"testing"

	"marketplace_backend/platform/apperr"
)

func TestValidateContentType(t *testing.T) {
	cases := []struct {
		contentType string
		ok          bool
	}{
		{contentType: "image/jpeg", ok: true},
		{contentType: "IMAGE/PNG; charset=binary", ok: true},
		{contentType: "application/pdf", ok: true},
		{contentType: "application/x-msdownload", ok: false},
		{contentType: "", ok: false},
	}
	for _, tc := range cases {
		err := ValidateContentType(tc.contentType)
		if (err == nil) != tc.ok {
			t.Fatalf("ValidateContentType(%q) = %v, want ok=%v", tc.contentType, err, tc.ok)
		}
		if err != nil && apperr.Field(err) != "contentType" {
			t.Fatalf("expected contentType field, got %q", apperr.Field(err))
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(0, 100); apperr.Field(err) != "size" {
		t.Fatalf("empty file must fail, got %v", err)
	}
	if err := ValidateFileSize(101, 100); apperr.Field(err) != "size" {
		t.Fatalf("oversized file must fail, got %v", err)
	}
	if err := ValidateFileSize(100, 100); err != nil {
		t.Fatalf("file at the limit must pass, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		name     string
		folder   string
		fileName string
		want     string
	}{
		{name: "plain", folder: "job-1/acct-1", fileName: "sink.jpg", want: "job-1/acct-1/sink_ab12.jpg"},
		{name: "path traversal dropped", folder: "job-1", fileName: "../../etc/passwd", want: "job-1/passwd_ab12"},
		{name: "windows path", folder: "job-1", fileName: `C:\photos\leak.png`, want: "job-1/leak_ab12.png"},
		{name: "empty name", folder: "job-1", fileName: "", want: "job-1/file_ab12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ObjectKey(tc.folder, tc.fileName, "ab12"); got != tc.want {
				t.Fatalf("ObjectKey = %q, want %q", got, tc.want)
			}
		})
	}
}
