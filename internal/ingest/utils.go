package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// AllowedExt checks if a file extension is in the default allowed set (pdf/xlsx/csv/txt).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// StagingKey is the content-addressed blob key for a file: sha256/<hex>.<ext>.
func StagingKey(hashHex, ext string) string {
	return "sha256/" + hashHex + "." + constants.NormalizeExt(ext)
}
