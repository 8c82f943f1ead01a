package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for invoice processing.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// Batch limits.
const (
	DefaultMaxFiles       = 50
	DefaultMaxFileSize    = "10MiB"
	DefaultFileTimeoutSec = 30
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
