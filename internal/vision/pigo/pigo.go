// Package pigo runs the face, pupil and mouth landmark cascades of the pure
// Go pigo library. It needs no native runtime and is the default backend.
package pigo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/vision"
)

// Cascade file names relative to the model directory.
const (
	FaceFinderFile = "facefinder"
	PuplocFile     = "puploc"
	LandmarksDir   = "lps"
)

// MouthCascades are the landmark cascades used for the smile check.
// lp84 gives a mouth corner (the other one when run flipped), lp82 the upper
// lip and lp81 the lower lip.
var MouthCascades = []string{"lp84", "lp82", "lp81"}

// RemoteBase is where the upstream project publishes its cascades.
const RemoteBase = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/"

// RemoteFiles lists every cascade Load reads, relative to both the model
// directory and RemoteBase.
func RemoteFiles() []string {
	files := []string{FaceFinderFile, PuplocFile}
	for _, name := range MouthCascades {
		files = append(files, LandmarksDir+"/"+name)
	}
	return files
}

const (
	shiftFactor = 0.1
	perturbs    = 63
	// detectMultiScale merges windows overlapping by this much
	groupIoU = 0.2
	// minFaceQuality is the summed cascade score a group of windows needs
	// to count as a face.
	minFaceQuality = 5.0
	// eye boxes are this fraction of the face side
	eyeBoxFraction = 0.3
)

// Models holds the unpacked cascades. They are only read after Load and may
// be shared between goroutines.
type Models struct {
	face   *pigo.Pigo
	pupils *pigo.PuplocCascade
	mouth  map[string]*pigo.PuplocCascade
}

// Load unpacks the cascades found in dir. The face and pupil cascades are
// required; the mouth cascades are optional and HasLandmarks reports whether
// all of them were found.
func Load(dir string) (*Models, error) {
	faceBytes, err := os.ReadFile(filepath.Join(dir, FaceFinderFile))
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}
	face, err := pigo.NewPigo().Unpack(faceBytes)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade: %w", err)
	}

	pupilBytes, err := os.ReadFile(filepath.Join(dir, PuplocFile))
	if err != nil {
		return nil, fmt.Errorf("reading pupil cascade: %w", err)
	}
	pupils, err := pigo.NewPuplocCascade().UnpackCascade(pupilBytes)
	if err != nil {
		return nil, fmt.Errorf("unpacking pupil cascade: %w", err)
	}

	m := &Models{face: face, pupils: pupils, mouth: make(map[string]*pigo.PuplocCascade)}
	for _, name := range MouthCascades {
		data, err := os.ReadFile(filepath.Join(dir, LandmarksDir, name))
		if errors.Is(err, os.ErrNotExist) {
			logger.WithField("cascade", name).Warn("Mouth landmark cascade not found, landmarks disabled")
			m.mouth = nil
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading landmark cascade %s: %w", name, err)
		}
		flpc, err := pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("unpacking landmark cascade %s: %w", name, err)
		}
		m.mouth[name] = flpc
	}
	return m, nil
}

// HasLandmarks reports whether the mouth cascades were loaded.
func (m *Models) HasLandmarks() bool {
	return len(m.mouth) == len(MouthCascades)
}

func (m *Models) FaceCascade() *FaceCascade { return &FaceCascade{models: m} }
func (m *Models) EyeDetector() *EyeDetector { return &EyeDetector{models: m} }

// Landmarker returns nil when the mouth cascades are missing.
func (m *Models) Landmarker() *Landmarker {
	if !m.HasLandmarks() {
		return nil
	}
	return &Landmarker{models: m}
}

func imageParams(gray *image.Gray) pigo.ImageParams {
	b := gray.Bounds()
	return pigo.ImageParams{
		Pixels: vision.Pixels(gray),
		Rows:   b.Dy(),
		Cols:   b.Dx(),
		Dim:    b.Dx(),
	}
}

// detectionBox converts a pigo hit (centre and side length) into a box.
func detectionBox(d pigo.Detection) image.Rectangle {
	half := d.Scale / 2
	return image.Rect(d.Col-half, d.Row-half, d.Col-half+d.Scale, d.Row-half+d.Scale)
}

// FaceCascade implements faceqa.FaceCascade.
type FaceCascade struct {
	models *Models
}

func (c *FaceCascade) DetectFaces(ctx context.Context, gray *image.Gray, p faceqa.CascadeParams) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := gray.Bounds()
	maxSize := max(b.Dx(), b.Dy())
	if b.Empty() || p.MinSize > maxSize {
		return nil, nil
	}

	dets := c.models.face.RunCascade(pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: shiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: imageParams(gray),
	}, 0.0)

	raw := make([]vision.Scored, 0, len(dets))
	for _, d := range dets {
		raw = append(raw, vision.Scored{Box: detectionBox(d), Score: d.Q})
	}
	groups := vision.GroupByOverlap(raw, groupIoU, p.MinNeighbors, minFaceQuality)
	faces := make([]image.Rectangle, 0, len(groups))
	for _, g := range groups {
		faces = append(faces, g.Box)
	}

	logger.WithFields(logrus.Fields{
		"raw":   len(dets),
		"faces": len(faces),
	}).Debug("pigo face cascade finished")
	return faces, nil
}

// findPupils seeds the pupil localizer from a face box the way pigo's own
// examples do and returns the (image left, image right) pupils. Either may be
// nil when the localizer lands outside the image.
func (m *Models) findPupils(params pigo.ImageParams, face image.Rectangle) (left, right *pigo.Puploc) {
	c := face.Min.Add(face.Max).Div(2)
	scale := float32(max(face.Dx(), face.Dy()))

	run := func(side float32) *pigo.Puploc {
		seed := pigo.Puploc{
			Row:      c.Y - int(0.085*scale),
			Col:      c.X + int(side*0.185*scale),
			Scale:    scale * 0.4,
			Perturbs: perturbs,
		}
		p := m.pupils.RunDetector(seed, params, 0.0, false)
		if p == nil || p.Row <= 0 || p.Col <= 0 || p.Row >= params.Rows || p.Col >= params.Cols {
			return nil
		}
		return p
	}
	return run(-1), run(1)
}

// EyeDetector implements faceqa.EyeDetector with pigo's pupil localizer.
// Every found pupil yields one square eye box centred on it.
type EyeDetector struct {
	models *Models
}

func (d *EyeDetector) DetectEyes(ctx context.Context, upper *image.Gray, face image.Rectangle) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if face.Empty() || upper.Bounds().Empty() {
		return nil, nil
	}
	params := imageParams(upper)
	left, right := d.models.findPupils(params, face)

	half := int(float64(max(face.Dx(), face.Dy())) * eyeBoxFraction / 2)
	var eyes []image.Rectangle
	for _, p := range []*pigo.Puploc{left, right} {
		if p == nil {
			continue
		}
		box := image.Rect(p.Col-half, p.Row-half, p.Col+half, p.Row+half).Intersect(upper.Bounds())
		if !box.Empty() {
			eyes = append(eyes, box)
		}
	}
	return eyes, nil
}

// Landmarker implements faceqa.Landmarker with pigo's landmark cascades.
type Landmarker struct {
	models *Models
}

func (l *Landmarker) MouthLandmarks(ctx context.Context, img image.Image, box image.Rectangle) (faceqa.MouthLandmarks, bool, error) {
	if err := ctx.Err(); err != nil {
		return faceqa.MouthLandmarks{}, false, err
	}
	params := imageParams(vision.Luma(img))
	left, right := l.models.findPupils(params, box)
	if left == nil || right == nil {
		return faceqa.MouthLandmarks{}, false, nil
	}

	point := func(name string, flip bool) (faceqa.Point, bool) {
		p := l.models.mouth[name].GetLandmarkPoint(left, right, params, perturbs, flip)
		if p == nil || p.Row <= 0 || p.Col <= 0 {
			return faceqa.Point{}, false
		}
		return faceqa.Point{X: float64(p.Col), Y: float64(p.Row)}, true
	}

	var (
		m  faceqa.MouthLandmarks
		ok [4]bool
	)
	m.Left, ok[0] = point("lp84", false)
	m.Right, ok[1] = point("lp84", true)
	m.Upper, ok[2] = point("lp82", false)
	m.Lower, ok[3] = point("lp81", false)
	for _, found := range ok {
		if !found {
			return faceqa.MouthLandmarks{}, false, nil
		}
	}
	return m, true, nil
}
