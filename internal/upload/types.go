package upload

import (
	"path/filepath"
	"strings"
)

// Extension and content-type allow-lists are checked independently as
// defense in depth: a permitted extension with a forbidden declared type
// (or vice versa) is rejected.
var (
	allowedExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".svg": true, ".bmp": true, ".heic": true, ".avif": true,
		".mp4": true, ".mpeg": true, ".webm": true, ".mov": true, ".mkv": true,
		".mp3": true, ".ogg": true, ".wav": true, ".aac": true, ".flac": true, ".m4a": true,
		".pdf": true, ".txt": true, ".md": true, ".csv": true, ".json": true,
		".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
		".zip": true, ".tar": true, ".gz": true,
	}

	allowedContentTypes = map[string]bool{
		"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
		"image/svg+xml": true, "image/bmp": true, "image/heic": true, "image/avif": true,
		"video/mp4": true, "video/mpeg": true, "video/webm": true, "video/quicktime": true,
		"video/x-matroska": true,
		"audio/mpeg": true, "audio/ogg": true, "audio/wav": true, "audio/wave": true,
		"audio/aac": true, "audio/flac": true, "audio/x-flac": true, "audio/mp4": true,
		"audio/x-m4a": true,
		"application/pdf": true, "text/plain": true, "text/markdown": true, "text/csv": true,
		"application/json": true,
		"application/msword":            true,
		"application/vnd.ms-excel":      true,
		"application/vnd.ms-powerpoint": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
		"application/zip": true, "application/x-tar": true, "application/gzip": true,
	}
)

func extensionAllowed(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

func contentTypeAllowed(contentType string) bool {
	// Parameters like "; charset=utf-8" are not part of the allow-list.
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
}
