// Package dataurl turns image files into data URIs so schedule images can
// travel inside the shared JSON document instead of a separate blob store.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes caps the source file size. The whole document has to fit
// in one remote bin write, so oversized images are rejected up front.
const DefaultMaxBytes = 1536 * 1024

// ErrTooLarge is returned when the source file exceeds the size cap.
var ErrTooLarge = errors.New("image file too large")

// ErrUnsupportedType is returned for files that are not a known image format.
var ErrUnsupportedType = errors.New("unsupported image type")

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MimeType reports the image MIME type for a file path, based on its
// extension. Returns ErrUnsupportedType for anything that is not an image.
func MimeType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := mimeTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	return mime, nil
}

// EncodeFile reads an image file and returns it as a base64 data URI.
// maxBytes <= 0 uses DefaultMaxBytes.
func EncodeFile(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	mime, err := MimeType(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, filepath.Base(path), info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	// Re-check after the read; the stat can race a writer still appending.
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, filepath.Base(path), len(data), maxBytes)
	}

	return Encode(mime, data), nil
}

// Encode builds a data URI from a MIME type and raw bytes.
func Encode(mime string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
