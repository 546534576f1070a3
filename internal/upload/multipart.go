package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// detectContentType sniffs the MIME type from the first 512 bytes of the
// uploaded content rather than trusting the client-declared header.
func detectContentType(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open multipart file: %w", err)
	}
	defer func() { _ = src.Close() }()

	// 512 bytes is the maximum http.DetectContentType reads.
	buf := make([]byte, 512)
	n, err := src.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read multipart file: %w", err)
	}

	return http.DetectContentType(buf[:n]), nil
}
