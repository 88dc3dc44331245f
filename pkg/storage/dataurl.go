package storage

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidDataURL is returned for malformed or non-image data URLs.
var ErrInvalidDataURL = errors.New("invalid image data URL")

// DecodeImageDataURL decodes a base64 "data:image/...;base64," URL into its content type and bytes.
func DecodeImageDataURL(s string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	contentType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	contentType = strings.ToLower(contentType)
	if _, allowed := AllowedImageTypes[contentType]; !allowed {
		return "", nil, ErrInvalidDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	if len(data) > MaxBannerSize {
		return "", nil, ErrInvalidDataURL
	}
	return contentType, data, nil
}
