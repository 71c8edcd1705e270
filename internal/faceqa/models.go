package faceqa

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/anime-shed/face-inspector-go/internal/thresholds"
	"github.com/anime-shed/face-inspector-go/pkg/models"
)

// Version selects the face locator strategy.
type Version int

const (
	// VersionCascade locates faces with the classical frontal-face cascade.
	VersionCascade Version = 1
	// VersionNeural locates faces with the neural detector.
	VersionNeural Version = 2
)

var (
	ErrUnknownVersion      = errors.New("unknown detector version")
	ErrStrategyUnavailable = errors.New("detector strategy not configured")
)

// ParseVersion maps the wire selector onto a Version. Zero selects the cascade.
func ParseVersion(v int) (Version, error) {
	switch Version(v) {
	case 0, VersionCascade:
		return VersionCascade, nil
	case VersionNeural:
		return VersionNeural, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
}

func (v Version) String() string {
	switch v {
	case VersionCascade:
		return "cascade"
	case VersionNeural:
		return "neural"
	}
	return fmt.Sprintf("version(%d)", int(v))
}

// CascadeParams are the detectMultiScale style knobs of a cascade detector.
type CascadeParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// FaceCascadeParams reads the face cascade settings from t.
func FaceCascadeParams(t thresholds.Thresholds) CascadeParams {
	return CascadeParams{
		ScaleFactor:  t.ScaleFactorFaceCascade,
		MinNeighbors: t.MinNeighborsFaceCascade,
		MinSize:      t.MinSizeFaceCascade,
	}
}

// DetectionOutcome is produced once per check.
type DetectionOutcome struct {
	FaceDetected    bool
	MoreThanOneFace bool
	// Boxes keeps every detection in detector order. Boxes[0] is the face
	// used by geometry dependent checks; no attempt is made to pick a best one.
	Boxes []image.Rectangle
}

// Point is a sub-pixel image coordinate.
type Point struct {
	X, Y float64
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// MouthLandmarks holds the four keypoints used by the smile check.
type MouthLandmarks struct {
	Left, Right  Point
	Upper, Lower Point
}

// Frame is a decoded image together with its luma plane. Both are anchored
// at the origin.
type Frame struct {
	Color image.Image
	Gray  *image.Gray
}

// NewFrame converts img once so every stage shares the same luma plane.
func NewFrame(img image.Image) *Frame {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	color := img
	if b.Min != (image.Point{}) {
		rgba := image.NewRGBA(rect)
		draw.Draw(rgba, rect, img, b.Min, draw.Src)
		color = rgba
	}

	gray, ok := img.(*image.Gray)
	if !ok || b.Min != (image.Point{}) {
		gray = image.NewGray(rect)
		draw.Draw(gray, rect, img, b.Min, draw.Src)
	}
	return &Frame{Color: color, Gray: gray}
}

// cropGray copies r out of gray into a new origin-anchored image. It returns
// nil when r does not overlap gray.
func cropGray(gray *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(gray.Bounds())
	if r.Empty() {
		return nil
	}
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), gray, r.Min, draw.Src)
	return out
}

func (f *Frame) Width() int  { return f.Gray.Bounds().Dx() }
func (f *Frame) Height() int { return f.Gray.Bounds().Dy() }

// Report is the result of Checker.Inspect.
type Report struct {
	InvocationID   string
	Version        Version
	Result         models.QualityResult
	Measurements   models.Measurements
	Faces          []image.Rectangle
	CenteringFaces []image.Rectangle
	DebugArtifacts []string
}

func toBox(r image.Rectangle) *models.Box {
	return &models.Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
