//go:build gocv

// Package cv runs the OpenCV Haar cascades and FaceDetectorYN through gocv.
// It is compiled only with the gocv build tag.
package cv

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
)

// Available reports whether the OpenCV backend is compiled in.
const Available = true

// Cascade file names relative to the model directory.
const (
	FaceCascadeFile  = "haarcascade_frontalface_default.xml"
	EyeCascadeFile   = "haarcascade_eye.xml"
	SmileCascadeFile = "haarcascade_smile.xml"
	YuNetFile        = "face_detection_yunet_2023mar.onnx"
)

const (
	eyeScaleFactor   = 1.1
	eyeMinNeighbors  = 4
	smileScaleFactor = 1.8
)

// classifier serializes access to one OpenCV cascade.
type classifier struct {
	mu sync.Mutex
	cc gocv.CascadeClassifier
}

func loadClassifier(path string) (*classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	cc := gocv.NewCascadeClassifier()
	if !cc.Load(path) {
		cc.Close()
		return nil, fmt.Errorf("loading cascade %s failed", path)
	}
	return &classifier{cc: cc}, nil
}

func (c *classifier) detect(gray *image.Gray, scale float64, minNeighbors, minSize int) ([]image.Rectangle, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("converting to mat: %w", err)
	}
	defer mat.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.DetectMultiScaleWithParams(mat, scale, minNeighbors, 0,
		image.Pt(minSize, minSize), image.Point{}), nil
}

func (c *classifier) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cc.Close()
}

// Models holds the OpenCV detectors loaded from one directory.
type Models struct {
	face, eyes, smiles *classifier
	yunet              *yunet
}

// Load reads the three Haar cascades from dir. The YuNet model is optional.
func Load(dir string) (*Models, error) {
	m := &Models{}
	var err error
	if m.face, err = loadClassifier(filepath.Join(dir, FaceCascadeFile)); err != nil {
		return nil, fmt.Errorf("face cascade: %w", err)
	}
	if m.eyes, err = loadClassifier(filepath.Join(dir, EyeCascadeFile)); err != nil {
		m.Close()
		return nil, fmt.Errorf("eye cascade: %w", err)
	}
	if m.smiles, err = loadClassifier(filepath.Join(dir, SmileCascadeFile)); err != nil {
		m.Close()
		return nil, fmt.Errorf("smile cascade: %w", err)
	}

	model := filepath.Join(dir, YuNetFile)
	if _, err := os.Stat(model); err == nil {
		m.yunet = &yunet{det: gocv.NewFaceDetectorYN(model, "", image.Pt(320, 320))}
	} else {
		logger.WithField("model", model).Warn("YuNet model not found, neural strategy disabled")
	}
	return m, nil
}

func (m *Models) Close() error {
	for _, c := range []*classifier{m.face, m.eyes, m.smiles} {
		if c != nil {
			c.close()
		}
	}
	if m.yunet != nil {
		m.yunet.close()
	}
	return nil
}

func (m *Models) FaceCascade() faceqa.FaceCascade   { return faceCascade{m.face} }
func (m *Models) EyeDetector() faceqa.EyeDetector   { return eyeCascade{m.eyes} }
func (m *Models) SmileCascade() faceqa.SmileCascade { return smileCascade{m.smiles} }

// FaceNetwork returns nil when the YuNet model was not found.
func (m *Models) FaceNetwork() faceqa.FaceNetwork {
	if m.yunet == nil {
		return nil
	}
	return m.yunet
}

type faceCascade struct{ c *classifier }

func (f faceCascade) DetectFaces(ctx context.Context, gray *image.Gray, p faceqa.CascadeParams) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.c.detect(gray, p.ScaleFactor, p.MinNeighbors, p.MinSize)
}

// eyeCascade scans the whole band and ignores the face box.
type eyeCascade struct{ c *classifier }

func (e eyeCascade) DetectEyes(ctx context.Context, upper *image.Gray, _ image.Rectangle) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.c.detect(upper, eyeScaleFactor, eyeMinNeighbors, 0)
}

type smileCascade struct{ c *classifier }

func (s smileCascade) DetectSmiles(ctx context.Context, face *image.Gray, minNeighbors int) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.c.detect(face, smileScaleFactor, minNeighbors, 0)
}

type yunet struct {
	mu  sync.Mutex
	det gocv.FaceDetectorYN
}

func (y *yunet) DetectFaces(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("converting to mat: %w", err)
	}
	defer mat.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	y.mu.Lock()
	y.det.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))
	y.det.Detect(mat, &faces)
	y.mu.Unlock()

	boxes := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x, yy := int(faces.GetFloatAt(r, 0)), int(faces.GetFloatAt(r, 1))
		w, h := int(faces.GetFloatAt(r, 2)), int(faces.GetFloatAt(r, 3))
		boxes = append(boxes, image.Rect(x, yy, x+w, yy+h))
	}
	return boxes, nil
}

func (y *yunet) close() {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.det.Close()
}
