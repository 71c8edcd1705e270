package onnx

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/anime-shed/face-inspector-go/internal/logger"
	"github.com/anime-shed/face-inspector-go/internal/vision"
)

const (
	yunetSize = 640
	// YuNetScoreThreshold and YuNetNMSThreshold are FaceDetectorYN's defaults.
	YuNetScoreThreshold = 0.9
	YuNetNMSThreshold   = 0.3
)

var yunetStrides = []int{8, 16, 32}

// strideOutput holds the three heads of one feature map, row major.
type strideOutput struct {
	stride int
	cls    []float32 // [n]
	obj    []float32 // [n]
	bbox   []float32 // [n*4]
}

// YuNet implements faceqa.FaceNetwork. Inference reuses bound tensors, so
// calls are serialized.
type YuNet struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]

	ScoreThreshold float32
	NMSThreshold   float64
}

// NewYuNet opens a YuNet model exported with the cls/obj/bbox heads of
// every stride. Init must have succeeded first.
func NewYuNet(modelPath string) (*YuNet, error) {
	input, err := ort.NewTensor(ort.NewShape(1, 3, yunetSize, yunetSize), make([]float32, 3*yunetSize*yunetSize))
	if err != nil {
		return nil, fmt.Errorf("creating yunet input tensor: %w", err)
	}

	var (
		names   []string
		outputs []*ort.Tensor[float32]
		values  []ort.Value
	)
	cleanup := func() {
		input.Destroy()
		for _, t := range outputs {
			t.Destroy()
		}
	}
	for _, head := range []struct {
		name  string
		width int64
	}{{"cls", 1}, {"obj", 1}, {"bbox", 4}} {
		for _, stride := range yunetStrides {
			n := int64(yunetSize/stride) * int64(yunetSize/stride)
			t, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, head.width))
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("creating yunet %s_%d tensor: %w", head.name, stride, err)
			}
			names = append(names, fmt.Sprintf("%s_%d", head.name, stride))
			outputs = append(outputs, t)
			values = append(values, t)
		}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, names,
		[]ort.Value{input}, values, nil)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("creating yunet session: %w", err)
	}

	logger.WithField("model", modelPath).Info("YuNet face detector loaded")
	return &YuNet{
		session:        session,
		input:          input,
		outputs:        outputs,
		ScoreThreshold: YuNetScoreThreshold,
		NMSThreshold:   YuNetNMSThreshold,
	}, nil
}

// Close releases the session and its tensors.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.session == nil {
		return nil
	}
	err := y.session.Destroy()
	y.input.Destroy()
	for _, t := range y.outputs {
		t.Destroy()
	}
	y.session = nil
	return err
}

// DetectFaces returns face boxes in image coordinates, best score first.
func (y *YuNet) DetectFaces(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	if y.session == nil {
		return nil, fmt.Errorf("yunet: session closed")
	}

	fillBGR(y.input.GetData(), resize(img, b, yunetSize, yunetSize), yunetSize)
	if err := y.session.Run(); err != nil {
		return nil, fmt.Errorf("yunet inference: %w", err)
	}

	n := len(yunetStrides)
	heads := make([]strideOutput, n)
	for i, stride := range yunetStrides {
		heads[i] = strideOutput{
			stride: stride,
			cls:    y.outputs[i].GetData(),
			obj:    y.outputs[n+i].GetData(),
			bbox:   y.outputs[2*n+i].GetData(),
		}
	}

	dets := vision.NMS(decodeYuNet(heads, yunetSize, y.ScoreThreshold), y.NMSThreshold)
	sx := float64(b.Dx()) / yunetSize
	sy := float64(b.Dy()) / yunetSize
	faces := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		r := image.Rect(
			int(math.Round(float64(d.Box.Min.X)*sx)), int(math.Round(float64(d.Box.Min.Y)*sy)),
			int(math.Round(float64(d.Box.Max.X)*sx)), int(math.Round(float64(d.Box.Max.Y)*sy)),
		).Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
		if !r.Empty() {
			faces = append(faces, r)
		}
	}

	logger.WithFields(logrus.Fields{
		"candidates": len(dets),
		"faces":      len(faces),
	}).Debug("YuNet finished")
	return faces, nil
}

// fillBGR writes img into an NCHW planar BGR buffer with 0..255 values.
func fillBGR(dst []float32, img *image.RGBA, size int) {
	plane := size * size
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			dst[i] = float32(p[2])
			dst[plane+i] = float32(p[1])
			dst[2*plane+i] = float32(p[0])
		}
	}
}

// decodeYuNet turns raw head outputs into scored boxes in input pixels.
// score = sqrt(cls*obj) with both clamped to [0,1]; box centres are offsets
// from the grid cell and sizes are log-encoded, both in units of the stride.
func decodeYuNet(heads []strideOutput, inputSize int, threshold float32) []vision.Scored {
	var dets []vision.Scored
	for _, h := range heads {
		cols := inputSize / h.stride
		s := float64(h.stride)
		for i := range h.cls {
			score := float32(math.Sqrt(float64(clamp01(h.cls[i]) * clamp01(h.obj[i]))))
			if score < threshold {
				continue
			}
			r, c := i/cols, i%cols
			bb := h.bbox[i*4 : i*4+4]
			cx := (float64(c) + float64(bb[0])) * s
			cy := (float64(r) + float64(bb[1])) * s
			w := math.Exp(float64(bb[2])) * s
			hh := math.Exp(float64(bb[3])) * s
			x0, y0 := cx-w/2, cy-hh/2
			dets = append(dets, vision.Scored{
				Box: image.Rect(
					int(math.Round(x0)), int(math.Round(y0)),
					int(math.Round(x0+w)), int(math.Round(y0+hh)),
				),
				Score: score,
			})
		}
	}
	return dets
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
