package evidence

import (
	"fmt"
	"path"
	"strings"

	"techo_backend/platform/apperr"
)

// Policy restricts what a store accepts.
type Policy struct {
	AllowedTypes map[string]bool
	MaxSize      int64
}

// EvidencePolicy accepts photos, short videos and PDFs.
func EvidencePolicy(maxSize int64) Policy {
	return Policy{
		MaxSize: maxSize,
		AllowedTypes: map[string]bool{
			"image/jpeg":      true,
			"image/png":       true,
			"image/webp":      true,
			"image/heic":      true,
			"video/mp4":       true,
			"video/quicktime": true,
			"video/webm":      true,
			"application/pdf": true,
		},
	}
}

// PlanPolicy accepts drawings, PDFs, images and office documents.
func PlanPolicy(maxSize int64) Policy {
	return Policy{
		MaxSize: maxSize,
		AllowedTypes: map[string]bool{
			"application/pdf":                                                         true,
			"image/vnd.dwg":                                                           true,
			"image/vnd.dxf":                                                           true,
			"image/jpeg":                                                              true,
			"image/png":                                                               true,
			"application/msword":                                                      true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
			"application/vnd.ms-excel":                                                true,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
		},
	}
}

// extensionTypes resolves types browsers tend to send as octet-stream.
var extensionTypes = map[string]string{
	".dwg":  "image/vnd.dwg",
	".dxf":  "image/vnd.dxf",
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// NormalizeContentType strips parameters and, for generic or missing types,
// falls back to the file extension.
func NormalizeContentType(fileName, declared string) string {
	ct := strings.TrimSpace(strings.ToLower(strings.Split(declared, ";")[0]))
	switch ct {
	case "", "application/octet-stream", "binary/octet-stream",
		"application/acad", "application/x-acad", "application/x-dwg", "application/dxf", "image/x-dxf":
		if byExt, ok := extensionTypes[strings.ToLower(path.Ext(fileName))]; ok {
			return byExt
		}
	}
	return ct
}

// Validate checks name, type and size of f against the policy.
func (p Policy) Validate(f File) error {
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("file name is required")
	}
	if !p.AllowedTypes[f.ContentType] {
		return apperr.Validation(fmt.Sprintf("content type %q is not allowed", f.ContentType))
	}
	if f.Size <= 0 {
		return apperr.Validation("file is empty")
	}
	if p.MaxSize > 0 && f.Size > p.MaxSize {
		return apperr.Validation(fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", f.Size, p.MaxSize))
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/") &&
		contentType != "image/vnd.dwg" && contentType != "image/vnd.dxf"
}
