package faceqa

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

type fakeCascade struct {
	mu     sync.Mutex
	boxes  []image.Rectangle
	err    error
	calls  int
	params []CascadeParams
}

func (f *fakeCascade) DetectFaces(_ context.Context, _ *image.Gray, p CascadeParams) ([]image.Rectangle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = append(f.params, p)
	return append([]image.Rectangle(nil), f.boxes...), f.err
}

type fakeNetwork struct {
	boxes []image.Rectangle
	err   error
}

func (f *fakeNetwork) DetectFaces(context.Context, image.Image) ([]image.Rectangle, error) {
	return append([]image.Rectangle(nil), f.boxes...), f.err
}

type fakeEyes struct {
	regions []image.Rectangle
	calls   int
	bounds  image.Rectangle
	face    image.Rectangle
}

func (f *fakeEyes) DetectEyes(_ context.Context, gray *image.Gray, face image.Rectangle) ([]image.Rectangle, error) {
	f.calls++
	f.bounds = gray.Bounds()
	f.face = face
	return f.regions, nil
}

type fakeLandmarker struct {
	m     MouthLandmarks
	found bool
	calls int
}

func (f *fakeLandmarker) MouthLandmarks(context.Context, image.Image, image.Rectangle) (MouthLandmarks, bool, error) {
	f.calls++
	return f.m, f.found, nil
}

type fakeSmiles struct {
	regions []image.Rectangle
	minN    int
}

func (f *fakeSmiles) DetectSmiles(_ context.Context, _ *image.Gray, minNeighbors int) ([]image.Rectangle, error) {
	f.minN = minNeighbors
	return f.regions, nil
}

type memorySink struct {
	mu    sync.Mutex
	names []string
	fail  bool
}

func (s *memorySink) Save(_ context.Context, name string, _ image.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("disk full")
	}
	s.names = append(s.names, name)
	return "mem://" + name, nil
}

// uniformGray returns a w x h image filled with v.
func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func fillRect(img *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}
