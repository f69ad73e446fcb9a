package nest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"knowledge-nest-backend/pkg/models"
)

// maxTextLen caps every sanitized free-text field. Longer input is truncated
// rather than rejected.
const maxTextLen = 2000

// allowedFileTypes is the upload allow-list: documents, spreadsheets,
// presentations, text, images, video, audio and archives.
var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain":                   true,
	"text/csv":                     true,
	"image/jpeg":                   true,
	"image/png":                    true,
	"image/gif":                    true,
	"image/webp":                   true,
	"video/mp4":                    true,
	"video/avi":                    true,
	"video/mov":                    true,
	"video/webm":                   true,
	"audio/mp3":                    true,
	"audio/wav":                    true,
	"audio/mpeg":                   true,
	"application/zip":              true,
	"application/x-rar-compressed": true,
	"application/x-7z-compressed":  true,
}

// SanitizeText normalizes free text for storage: escapes backslashes and
// double quotes so the value cannot break downstream serialization, strips
// control characters (tab, LF and CR survive), trims surrounding whitespace
// and truncates to maxTextLen.
func SanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7F:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}

	s := strings.TrimSpace(b.String())
	if len(s) > maxTextLen {
		s = truncateText(s, maxTextLen)
	}
	return s
}

// truncateText cuts s to at most max bytes without splitting a multi-byte
// rune or an escape pair in half.
func truncateText(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	s = s[:cut]

	// an odd run of trailing backslashes is a dangling escape
	trailing := 0
	for trailing < len(s) && s[len(s)-1-trailing] == '\\' {
		trailing++
	}
	if trailing%2 == 1 {
		s = s[:len(s)-1]
	}
	return s
}

// ValidateUpload checks the client-declared size and mime type against the
// service limits before a metadata record is created.
func ValidateUpload(req *models.UploadMetadataRequest, maxBytes int64) error {
	if req.FileSize <= 0 {
		return &ValidationError{Message: "file size must be positive"}
	}
	if req.FileSize > maxBytes {
		return &ValidationError{Message: fmt.Sprintf(
			"file size must be less than %dMB", maxBytes/(1024*1024))}
	}
	if !allowedFileTypes[strings.ToLower(strings.TrimSpace(req.FileType))] {
		return &ValidationError{Message: "file type not allowed. Please upload PDF, Word, Excel, PowerPoint, text files, images, videos, audio, or archive files."}
	}
	return nil
}
