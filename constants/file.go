package constants

import "strings"

// Format is the coarse document format recorded on extract jobs.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
	TEXT  Format = "TEXT"
)

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"heic": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its Format, or "" if unsupported.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "png", "jpg", "jpeg", "heic":
		return IMAGE
	case "txt":
		return TEXT
	default:
		return ""
	}
}

// MaxVisionMB caps the size of an image payload attached to a provider request.
const MaxVisionMB = 16

// MinTextChars is the smallest PDF text layer considered usable; below this
// the first page is rasterized and sent to a vision-capable provider instead.
const MinTextChars = 64
