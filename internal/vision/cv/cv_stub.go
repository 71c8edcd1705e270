//go:build !gocv

// Package cv runs the OpenCV Haar cascades and FaceDetectorYN through gocv.
// Without the gocv build tag every constructor fails with
// vision.ErrBackendUnavailable.
package cv

import (
	"fmt"

	"github.com/anime-shed/face-inspector-go/internal/faceqa"
	"github.com/anime-shed/face-inspector-go/internal/vision"
)

// Available reports whether the OpenCV backend is compiled in.
const Available = false

// Models is never constructed without gocv.
type Models struct{}

func Load(string) (*Models, error) {
	return nil, fmt.Errorf("%w: built without the gocv tag", vision.ErrBackendUnavailable)
}

func (m *Models) Close() error                      { return nil }
func (m *Models) FaceCascade() faceqa.FaceCascade   { return nil }
func (m *Models) EyeDetector() faceqa.EyeDetector   { return nil }
func (m *Models) SmileCascade() faceqa.SmileCascade { return nil }
func (m *Models) FaceNetwork() faceqa.FaceNetwork   { return nil }
