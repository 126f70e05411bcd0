// Package validation checks user-supplied paths and resource files before
// the assembler reads or writes them.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on inputs read from a manifest.
const (
	// MaxFileSize is the maximum allowed resource or page size (256 MB).
	MaxFileSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Errors returned for unsafe paths and files.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrPathTraversal    = errors.New("path escapes its base directory")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrFileTooLarge     = errors.New("file too large")
)

// ValidatePath rejects empty and overlong paths and paths holding control
// characters, NUL included.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return ErrEmptyPath
	case len(p) > MaxPathLength:
		return ErrPathTooLong
	}
	if i := strings.IndexFunc(p, unicode.IsControl); i >= 0 {
		return fmt.Errorf("%w at offset %d", ErrInvalidCharacter, i)
	}
	return nil
}

// LocalPath cleans a manifest-relative path. Absolute paths and paths that
// climb above their starting directory are rejected.
func LocalPath(p string) (string, error) {
	if err := ValidatePath(p); err != nil {
		return "", err
	}
	clean := filepath.Clean(p)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, p)
	}
	return clean, nil
}

// ValidateFilename checks that name can be written as a single entry of
// an output directory.
func ValidateFilename(name string) error {
	if len(name) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if err := ValidatePath(name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilename, err)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q is not a single path element", ErrInvalidFilename, name)
	}
	return nil
}

// ValidateSize rejects files larger than MaxFileSize.
func ValidateSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, MaxFileSize)
	}
	return nil
}

// magicBytes maps content signatures to media types.
var magicBytes = []struct {
	mediaType string
	magic     []byte
	offset    int
}{
	{"image/png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0},
	{"image/jpeg", []byte{0xff, 0xd8, 0xff}, 0},
	{"image/gif", []byte("GIF8"), 0},
	{"image/webp", []byte("WEBP"), 8},
	{"application/pdf", []byte("%PDF-"), 0},
}

// extensionTypes maps lower-case extensions to media types.
var extensionTypes = map[string]string{
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".pdf":   "application/pdf",
	".css":   "text/css",
	".js":    "application/javascript",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".xhtml": "application/xhtml+xml",
	".html":  "text/html",
	".json":  "application/json",
	".txt":   "text/plain",
}

// DetectMediaType returns the media type of a resource, preferring its
// content signature over its extension. Unknown content falls back to
// application/octet-stream.
func DetectMediaType(filename string, data []byte) string {
	for _, sig := range magicBytes {
		end := sig.offset + len(sig.magic)
		if end <= len(data) && bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.mediaType
		}
	}
	if mediaType, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mediaType
	}
	return "application/octet-stream"
}
