package ingest

import (
	"path/filepath"
	"strings"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
)

// AllowedExt reports whether ext (with or without the dot) is accepted.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
