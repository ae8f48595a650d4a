// Package staging contains the room-staging domain: input validation,
// reference-image resolution, prompt construction and the orchestration of
// the external storage and generation capabilities.
package staging

import (
	"context"
	"path/filepath"
	"strings"
)

// Uploader pushes raw bytes to an object-storage capability and returns a
// durable, publicly fetchable URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType, filename string) (string, error)
}

// Generation is the normalized output of the image-editing capability.
type Generation struct {
	ImageURL    string
	Description string
}

// Generator invokes the external image-editing capability synchronously with
// an ordered list of image URLs, source image first.
type Generator interface {
	Edit(ctx context.Context, prompt string, imageURLs []string) (Generation, error)
}

// IsHEIC reports whether the file name or declared content type indicates a
// HEIC/HEIF payload. The generation capability rejects the format, so the
// check lets callers fail fast before any network call.
func IsHEIC(filename, contentType string) bool {
	name := strings.ToLower(strings.TrimSpace(filename))
	if strings.HasSuffix(name, ".heic") || strings.HasSuffix(name, ".heif") {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.Contains(ct, "image/heic") || strings.Contains(ct, "image/heif")
}

// MIMEForExt infers an image MIME type from a file extension, defaulting to
// JPEG the way the reference uploads always have.
func MIMEForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// isImageFile reports whether the name carries one of the allowed reference
// image extensions. Metadata files such as readme.md never match.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	default:
		return false
	}
}
