package constants

import "strings"

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"

	// MaxUploadBytes is the per-file upload cap enforced at ingress.
	MaxUploadBytes = 5 << 20
	// MaxUploadFiles is the number of files accepted in one analyze request.
	MaxUploadFiles = 8
	// UploadField is the multipart field name carrying documents.
	UploadField = "prescription"
)

// AllowedMediaTypes holds the media types the extraction stage accepts.
var AllowedMediaTypes = map[string]struct{}{
	MediaTypePDF:  {},
	MediaTypeJPEG: {},
	MediaTypePNG:  {},
}

// AllowedExtensions maps accepted file extensions to their media type.
var AllowedExtensions = map[string]string{
	"pdf":  MediaTypePDF,
	"jpg":  MediaTypeJPEG,
	"jpeg": MediaTypeJPEG,
	"png":  MediaTypePNG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMediaType lowercases a media type and drops any parameters ("; charset=...").
func NormalizeMediaType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsAllowedMediaType reports whether mt is on the extraction allow-list.
func IsAllowedMediaType(mt string) bool {
	_, ok := AllowedMediaTypes[NormalizeMediaType(mt)]
	return ok
}

// MediaTypeForExt returns the media type for an extension, or "" when not allowed.
func MediaTypeForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// SourceKindForMediaType maps an allowed media type to the kind of text it yields.
func SourceKindForMediaType(mt string) SourceKind {
	switch NormalizeMediaType(mt) {
	case MediaTypePDF:
		return SourcePDF
	case MediaTypeJPEG, MediaTypePNG:
		return SourceImage
	default:
		return ""
	}
}
