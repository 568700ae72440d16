package upload

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes int64 = 5 << 20

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9_\-.]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
)

// SanitizeFileName lower-cases name, replaces anything outside [a-z0-9_.-]
// with underscores, collapses runs of underscores and trims them from both ends.
func SanitizeFileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// readImage reads at most maxBytes from r and checks the sniffed content type.
func readImage(r io.Reader, declaredSize, maxBytes int64) ([]byte, string, error) {
	if declaredSize > maxBytes {
		return nil, "", tooLarge(maxBytes)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if n > maxBytes {
		return nil, "", tooLarge(maxBytes)
	}
	if n == 0 {
		return nil, "", apperror.Validation("file", "Please select an image.")
	}

	data := buf.Bytes()
	contentType := http.DetectContentType(data)
	if _, ok := allowedTypes[contentType]; !ok {
		return nil, "", apperror.Validation("file", "Invalid file. Only JPEG, PNG and GIF images are allowed.")
	}
	return data, contentType, nil
}

func tooLarge(maxBytes int64) error {
	return apperror.Validation("file", TooLargeMessage(maxBytes))
}

// TooLargeMessage is the user-facing rejection for files over maxBytes.
func TooLargeMessage(maxBytes int64) string {
	limit := fmt.Sprintf("%dMB", maxBytes>>20)
	if maxBytes%(1<<20) != 0 {
		limit = fmt.Sprintf("%dKB", maxBytes>>10)
	}
	return fmt.Sprintf("Invalid file. Only images under %s are allowed.", limit)
}
