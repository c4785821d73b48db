package domain

import "strings"

// DefaultMaxUploadBytes is the per-file upload ceiling
const DefaultMaxUploadBytes int64 = 50 << 20

var supportedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"image/png":          true,
	"image/jpeg":         true,
	"image/gif":          true,
	"image/webp":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"application/rtf": true,
	"text/rtf":        true,
}

// NormalizeMimeType strips parameters and lower-cases a MIME type
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsSupportedMimeType reports whether files of this type can be uploaded
func IsSupportedMimeType(mimeType string) bool {
	return supportedMimeTypes[NormalizeMimeType(mimeType)]
}

// IsPaginated reports whether page count is derived from the content
func IsPaginated(mimeType string) bool {
	return NormalizeMimeType(mimeType) == "application/pdf"
}
