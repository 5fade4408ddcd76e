package domain

import (
	"path/filepath"
	"strings"
)

// SupportedFormats lists the image extensions accepted for upload.
var SupportedFormats = []string{"png", "jpg", "jpeg", "webp"}

// FormatOf returns the lower-cased extension of path without the leading dot
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// IsSupportedFormat reports whether path has one of the SupportedFormats extensions
func IsSupportedFormat(path string) bool {
	format := FormatOf(path)
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// WireFormat maps a file format to the file type name the remote service expects.
func WireFormat(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
