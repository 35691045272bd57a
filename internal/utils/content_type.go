package utils

import "strings"

// GetFileExtensionFromContentType maps a MIME type to the extension used in storage keys.
func GetFileExtensionFromContentType(contentType string) string {
	contentType = strings.ToLower(contentType)

	switch {
	case strings.Contains(contentType, "jpeg") || strings.Contains(contentType, "jpg"):
		return "jpg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "pdf"):
		return "pdf"
	case strings.Contains(contentType, "word"):
		return "docx"
	case strings.Contains(contentType, "excel") || strings.Contains(contentType, "spreadsheet"):
		return "xlsx"
	case strings.Contains(contentType, "text/plain"):
		return "txt"
	case strings.Contains(contentType, "html"):
		return "html"
	case strings.Contains(contentType, "csv"):
		return "csv"
	case strings.Contains(contentType, "calendar"):
		return "ics"
	case strings.Contains(contentType, "zip"):
		return "zip"
	default:
		return "bin"
	}
}
