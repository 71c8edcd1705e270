package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
)

const debugJPEGQuality = 90

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: debugJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding debug image: %w", err)
	}
	return buf.Bytes(), nil
}

// DirSink writes debug images into a local directory.
type DirSink struct {
	dir string
}

// NewDirSink creates dir when missing.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating debug dir: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Save(ctx context.Context, name string, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	data, err := encodeJPEG(img)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name)
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	// readers never see a half written file
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

// BlobSink uploads debug images to a blob container.
type BlobSink struct {
	store     BlobStorage
	container string
	prefix    string
}

func NewBlobSink(store BlobStorage, container, prefix string) *BlobSink {
	return &BlobSink{store: store, container: container, prefix: prefix}
}

func (s *BlobSink) Save(ctx context.Context, name string, img image.Image) (string, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return "", err
	}
	return s.store.PutObject(ctx, s.container, s.prefix+name, "image/jpeg", data)
}
