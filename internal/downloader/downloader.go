// Package downloader fetches sample portraits and model files to disk.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/face-inspector-go/internal/logger"
)

// PortraitURL serves a new generated face on every request.
const PortraitURL = "https://thispersondoesnotexist.com"

// Fetcher downloads raw bytes.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Downloader writes files with at most Concurrency requests in flight.
type Downloader struct {
	Fetcher     Fetcher
	Concurrency int
	// Progress, when set, is called after every finished file.
	Progress func()
	// now is replaced in tests
	now func() time.Time
}

func New(f Fetcher, concurrency int) *Downloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Downloader{Fetcher: f, Concurrency: concurrency, now: time.Now}
}

// PortraitName is the file name of the i-th portrait of a run started at t.
func PortraitName(t time.Time, i int) string {
	return fmt.Sprintf("generated_image_%s_%02d.jpg", t.Format("20060102150405"), i)
}

// Portraits saves count images from sourceURL into dir and returns their
// paths. Responses that are not images fail the run.
func (d *Downloader) Portraits(ctx context.Context, sourceURL, dir string, count int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	started := d.now()
	paths := make([]string, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	for i := 0; i < count; i++ {
		g.Go(func() error {
			data, err := d.Fetcher.FetchBytes(ctx, sourceURL)
			if err != nil {
				return fmt.Errorf("download image %d: %w", i+1, err)
			}
			if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
				return fmt.Errorf("download image %d: got %s, want an image", i+1, mt.String())
			}
			path := filepath.Join(dir, PortraitName(started, i+1))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			paths[i] = path
			logger.WithField("path", path).Debug("Image saved")
			d.progress()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Files mirrors names from baseURL into dir, keeping their relative paths.
func (d *Downloader) Files(ctx context.Context, baseURL, dir string, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	for _, name := range names {
		g.Go(func() error {
			data, err := d.Fetcher.FetchBytes(ctx, strings.TrimSuffix(baseURL, "/")+"/"+name)
			if err != nil {
				return fmt.Errorf("download %s: %w", name, err)
			}
			path := filepath.Join(dir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			d.progress()
			return nil
		})
	}
	return g.Wait()
}

func (d *Downloader) progress() {
	if d.Progress != nil {
		d.Progress()
	}
}
