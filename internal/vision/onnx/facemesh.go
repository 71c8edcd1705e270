package onnx

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/logger"
)

const (
	meshSize      = 192
	meshLandmarks = 468
	// the detector box is grown by this fraction on every side before cropping
	meshCropMargin = 0.25
)

// Mesh indices of the four mouth keypoints.
const (
	MouthLeft  = 61
	MouthRight = 291
	LipUpper   = 13
	LipLower   = 14
)

// MeshConfig names the tensors of a face mesh export. The defaults match the
// common NHWC conversion of the 468-point model.
type MeshConfig struct {
	InputName  string
	OutputName string
}

func DefaultMeshConfig() MeshConfig {
	return MeshConfig{InputName: "input_1", OutputName: "conv2d_21"}
}

// FaceMesh implements faceqa.Landmarker.
type FaceMesh struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewFaceMesh(modelPath string, cfg MeshConfig) (*FaceMesh, error) {
	input, err := ort.NewTensor(ort.NewShape(1, meshSize, meshSize, 3), make([]float32, meshSize*meshSize*3))
	if err != nil {
		return nil, fmt.Errorf("creating mesh input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, meshLandmarks*3))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("creating mesh output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("creating mesh session: %w", err)
	}
	logger.WithField("model", modelPath).Info("Face mesh model loaded")
	return &FaceMesh{session: session, input: input, output: output}, nil
}

func (m *FaceMesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.input.Destroy()
	m.output.Destroy()
	m.session = nil
	return err
}

func (m *FaceMesh) MouthLandmarks(ctx context.Context, img image.Image, box image.Rectangle) (faceqa.MouthLandmarks, bool, error) {
	if err := ctx.Err(); err != nil {
		return faceqa.MouthLandmarks{}, false, err
	}
	crop := meshCrop(box, img.Bounds())
	if crop.Empty() {
		return faceqa.MouthLandmarks{}, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return faceqa.MouthLandmarks{}, false, fmt.Errorf("face mesh: session closed")
	}

	fillRGBUnit(m.input.GetData(), resize(img, crop, meshSize, meshSize), meshSize)
	if err := m.session.Run(); err != nil {
		return faceqa.MouthLandmarks{}, false, fmt.Errorf("face mesh inference: %w", err)
	}

	out := m.output.GetData()
	origin := crop.Min.Sub(img.Bounds().Min)
	at := func(idx int) faceqa.Point {
		return meshPoint(out, idx, crop.Dx(), crop.Dy(), origin)
	}
	return faceqa.MouthLandmarks{
		Left:  at(MouthLeft),
		Right: at(MouthRight),
		Upper: at(LipUpper),
		Lower: at(LipLower),
	}, true, nil
}

// meshCrop grows box by meshCropMargin and clips it to bounds.
func meshCrop(box, bounds image.Rectangle) image.Rectangle {
	dx := int(float64(box.Dx()) * meshCropMargin)
	dy := int(float64(box.Dy()) * meshCropMargin)
	grown := image.Rect(box.Min.X-dx, box.Min.Y-dy, box.Max.X+dx, box.Max.Y+dy)
	// box is in frame coordinates anchored at the origin
	return grown.Add(bounds.Min).Intersect(bounds)
}

// meshPoint maps landmark idx from model pixels back to frame coordinates.
func meshPoint(out []float32, idx, cropW, cropH int, origin image.Point) faceqa.Point {
	x := float64(out[idx*3]) * float64(cropW) / meshSize
	y := float64(out[idx*3+1]) * float64(cropH) / meshSize
	return faceqa.Point{X: x + float64(origin.X), Y: y + float64(origin.Y)}
}

// fillRGBUnit writes img into an NHWC RGB buffer scaled to [0,1].
func fillRGBUnit(dst []float32, img *image.RGBA, size int) {
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			p := row[x*4:]
			i := (y*size + x) * 3
			dst[i] = float32(p[0]) / 255
			dst[i+1] = float32(p[1]) / 255
			dst[i+2] = float32(p[2]) / 255
		}
	}
}
