package constants

import (
	"mime"
	"strings"
)

// Content types accepted by the extractor.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
	ContentTypeText = "text/plain"
)

// AllowedExtensions holds the default allowed file extensions for statement ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
	"csv":  {},
	"txt":  {},
}

var extContentTypes = map[string]string{
	"pdf":  ContentTypePDF,
	"xlsx": ContentTypeXLSX,
	"csv":  ContentTypeCSV,
	"txt":  ContentTypeText,
}

// MaxObjectBytes is the default upper bound on a single uploaded document.
const MaxObjectBytes = 20 << 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ContentTypeForExt maps a file extension to its content type, or "" when unknown.
func ContentTypeForExt(ext string) string {
	return extContentTypes[NormalizeExt(ext)]
}

// NormalizeContentType drops parameters and lowercases the media type.
func NormalizeContentType(ct string) string {
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
