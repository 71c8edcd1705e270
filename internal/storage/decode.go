package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes bounds every image read from a remote source.
	MaxImageBytes = 20 << 20
	// MaxImagePixels bounds the decoded size. A small, highly compressed file
	// can still expand to gigabytes, so dimensions are checked before decoding.
	MaxImagePixels = 40_000_000
)

var (
	ErrEmptyImage        = errors.New("empty image payload")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// Decode sniffs data and decodes it when it holds a supported image.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	mt := mimetype.Detect(data)
	if !supportedTypes[mt.String()] {
		return nil, mt.String(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, mt.String(), fmt.Errorf("failed to read image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxImagePixels {
		return nil, mt.String(), fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mt.String(), fmt.Errorf("failed to decode image: %w", err)
	}
	return img, mt.String(), nil
}

// DecodeBase64 decodes an inline image. A data URI header
// ("data:image/png;base64,") is stripped first; standard, URL-safe and
// unpadded alphabets are accepted.
func DecodeBase64(payload string) (image.Image, error) {
	raw, err := decodeBase64String(payload)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(raw)
	return img, err
}

func decodeBase64String(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, errors.New("malformed data URI")
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, ErrEmptyImage
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(s)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("invalid base64 image: %w", lastErr)
}
