package expense

import (
	"encoding/base64"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// EncodeInline packs a file into a self-contained data URL
func EncodeInline(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeInline unpacks a data URL produced by EncodeInline
func DecodeInline(inline string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(inline, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URL has no payload")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return contentType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return contentType, data, nil
}

// ContentTypeFor guesses a receipt's MIME type from its name, then its bytes
func ContentTypeFor(name string, head []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return "application/octet-stream"
}

// ExtensionFor returns a file extension for a MIME type
func ExtensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}
