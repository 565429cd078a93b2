package domain

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// ClassifyResource определяет тип вложения по MIME, затем по расширению uri.
// Все нераспознанное считается ссылкой.
func ClassifyResource(uri, mimeType string) ResourceType {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(extension(uri))
	}
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ResourceImage
	case strings.HasPrefix(mimeType, "video/"):
		return ResourceVideo
	case strings.HasPrefix(mimeType, "application/pdf"),
		strings.HasPrefix(mimeType, "application/msword"),
		strings.HasPrefix(mimeType, "application/vnd.openxmlformats"),
		strings.HasPrefix(mimeType, "application/vnd.ms-"),
		strings.HasPrefix(mimeType, "text/plain"),
		strings.HasPrefix(mimeType, "text/markdown"):
		return ResourceDocument
	}
	switch extension(uri) {
	case ".md", ".txt", ".doc", ".docx", ".pdf", ".ppt", ".pptx", ".xls", ".xlsx":
		return ResourceDocument
	case ".heic", ".webp", ".jpg", ".jpeg", ".png", ".gif":
		return ResourceImage
	case ".mp4", ".m4v", ".mov", ".mkv", ".webm", ".avi":
		return ResourceVideo
	}
	return ResourceLink
}

func extension(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
