package resolver

import (
	"mime"
	"path"
	"strings"

	// Packages
	mimetype "github.com/gabriel-vasile/mimetype"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// wellKnownMIME maps file extensions that Go's mime package may not know about
// (it depends on the host's mime.types) to their canonical MIME type.
var wellKnownMIME = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	// Documents
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
	".md":   "text/markdown",
	".csv":  "text/csv",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",

	// Video
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",

	// Archives
	".zip": "application/zip",
	".rar": "application/vnd.rar",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",

	// Web and source
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".go":   "text/x-go",
	".py":   "text/x-python",
	".sh":   "text/x-shellscript",
	".ts":   "text/typescript",
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// MIMEByExt returns the MIME type for a file extension, consulting wellKnownMIME
// first and then the system MIME database. Returns an empty string when the
// extension is unknown.
func MIMEByExt(ext string) string {
	ext = strings.ToLower(ext)
	if ct, ok := wellKnownMIME[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// MIMEByName returns the MIME type for the extension of a file name
func MIMEByName(name string) string {
	if ext := path.Ext(name); ext != "" && ext != name {
		return MIMEByExt(ext)
	}
	return ""
}

// MIMEBySniff detects the MIME type from the leading bytes of content
func MIMEBySniff(head []byte) string {
	return mimetype.Detect(head).String()
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// baseType strips parameters from a Content-Type header value
func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mediatype, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediatype
	}
	return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
}

func isGeneric(contentType string) bool {
	return contentType == "" || contentType == types.ContentTypeBinary
}
